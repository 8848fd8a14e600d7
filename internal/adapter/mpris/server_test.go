package mpris

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/adapter/audio/mock"
	"github.com/rhinomusic/rhino/internal/adapter/eventbus"
	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/logger"
	"github.com/rhinomusic/rhino/internal/service"
	"github.com/rhinomusic/rhino/internal/testutil"
)

type fileReader struct{}

func (fileReader) ReadSong(path string) (domain.Song, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.Song{}, domain.ErrFileNotFound
	}
	return domain.Song{Title: filepath.Base(path), FileReference: path}, nil
}

type fixture struct {
	server *Server
	player *service.PlayerService
	engine *mock.Engine
	bus    *eventbus.SyncEventBus
	obj    *playerObject
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := logger.NewTestLogger()
	engine := mock.NewEngine(log)
	bus := eventbus.NewSyncEventBus(log)
	player := service.NewPlayerService(log, engine, bus, service.DefaultPlayerConfig())
	t.Cleanup(func() {
		_ = player.Shutdown()
		_ = engine.Close()
		_ = bus.Close()
	})

	server := NewServer(log, player, fileReader{}, bus, opts)
	return &fixture{server: server, player: player, engine: engine, bus: bus, obj: &playerObject{s: server}}
}

func (f *fixture) load(t *testing.T, titles ...string) []domain.Song {
	t.Helper()
	songs := make([]domain.Song, 0, len(titles))
	for _, title := range titles {
		songs = append(songs, domain.Song{Title: title, FileReference: "/music/" + title + ".mp3"})
	}
	require.NoError(t, f.player.AddSongs(songs, true))
	require.Eventually(t, f.player.IsPlaying, time.Second, 5*time.Millisecond)
	return songs
}

func TestNewServer_Defaults(t *testing.T) {
	f := newFixture(t, Options{})

	assert.Equal(t, "Rhino", f.server.opts.Identity)
	assert.Equal(t, fmt.Sprintf("org.mpris.MediaPlayer2.rhino.instance%d", os.Getpid()), f.server.opts.BusName)
}

func TestPlayerObject_Navigation(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })
	f := newFixture(t, Options{})
	f.load(t, "a", "b")

	assert.Nil(t, f.obj.Next())
	assert.Equal(t, 1, f.player.State().Position)

	assert.Nil(t, f.obj.Previous())
	assert.Equal(t, 0, f.player.State().Position)

	assert.Nil(t, f.obj.Pause())
	assert.Nil(t, f.obj.Play())
	assert.Nil(t, f.obj.PlayPause())
	assert.Nil(t, f.obj.Stop())
}

func TestPlayerObject_Seek(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })
	f := newFixture(t, Options{})
	f.load(t, "a", "b")

	assert.Nil(t, f.obj.Seek(Micros(10*time.Second)))
	assert.Equal(t, 10*time.Second, f.player.Position())

	assert.Nil(t, f.obj.Seek(Micros(-5*time.Second)))
	assert.Equal(t, 5*time.Second, f.player.Position())

	assert.Nil(t, f.obj.Seek(Micros(-time.Minute)))
	assert.Equal(t, time.Duration(0), f.player.Position())

	// Past the end skips to the next song
	assert.Nil(t, f.obj.Seek(Micros(mock.DefaultDuration+time.Second)))
	assert.Equal(t, 1, f.player.State().Position)
}

func TestPlayerObject_SetPosition(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })
	f := newFixture(t, Options{})
	songs := f.load(t, "a", "b")

	assert.Nil(t, f.obj.SetPosition(dbus.ObjectPath(domain.TrackID(songs[0])), Micros(20*time.Second)))
	assert.Equal(t, 20*time.Second, f.player.Position())

	// Stale track ids and out of range positions are ignored
	assert.Nil(t, f.obj.SetPosition(dbus.ObjectPath(domain.TrackID(songs[1])), Micros(40*time.Second)))
	assert.Nil(t, f.obj.SetPosition(dbus.ObjectPath(domain.TrackID(songs[0])), Micros(time.Hour)))
	assert.Equal(t, 20*time.Second, f.player.Position())
}

func TestPlayerObject_OpenUri(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })
	f := newFixture(t, Options{})

	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	assert.Nil(t, f.obj.OpenUri("file://"+path))
	require.Eventually(t, f.player.IsPlaying, time.Second, 5*time.Millisecond)
	assert.Equal(t, path, f.player.State().Current.FileReference)

	assert.NotNil(t, f.obj.OpenUri("https://example.com/song.mp3"))
	assert.NotNil(t, f.obj.OpenUri("file:///does/not/exist.mp3"))

	f.server.reader = nil
	assert.NotNil(t, f.obj.OpenUri("file://"+path))
}

func TestPlayerObject_Errors(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })
	f := newFixture(t, Options{})

	// Empty queue
	assert.NotNil(t, f.obj.Next())
	assert.NotNil(t, f.obj.Previous())
}

func TestRootObject_Quit(t *testing.T) {
	quit := make(chan struct{})
	root := &rootObject{quit: func() { close(quit) }}

	assert.Nil(t, root.Raise())
	assert.Nil(t, root.Quit())
	select {
	case <-quit:
	case <-time.After(time.Second):
		t.Fatal("quit not called")
	}

	assert.Nil(t, (&rootObject{}).Quit())
}

func TestServer_SessionBus(t *testing.T) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no session bus")
	}
	t.Cleanup(func() { testutil.VerifyNoLeaks(t, testutil.IgnoreDBusGoroutines()...) })

	f := newFixture(t, Options{
		Identity: "Rhino Test",
		BusName:  fmt.Sprintf("org.mpris.MediaPlayer2.rhino.test%d", os.Getpid()),
	})
	require.NoError(t, f.server.Start())
	t.Cleanup(func() { _ = f.server.Stop() })

	client, err := dbus.ConnectSessionBus()
	require.NoError(t, err)
	defer client.Close()

	obj := client.Object(f.server.opts.BusName, objectPath)
	identity, err := obj.GetProperty(rootIface + ".Identity")
	require.NoError(t, err)
	assert.Equal(t, "Rhino Test", identity.Value())

	f.load(t, "a")
	require.Eventually(t, func() bool {
		status, err := obj.GetProperty(playerIface + ".PlaybackStatus")
		return err == nil && status.Value() == "Playing"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, obj.Call(playerIface+".Stop", 0).Err)
	require.Eventually(t, func() bool {
		return f.player.State().Status == domain.StatusStopped
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, obj.SetProperty(playerIface+".Volume", 0.5))
	require.Eventually(t, func() bool {
		return f.player.Volume() == 50
	}, time.Second, 10*time.Millisecond)
}
