// Package mpris exposes the player on the D-Bus session bus through the
// MPRIS media player interface, so desktop media keys and applets can drive it.
package mpris

import (
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

const (
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

// Options configures the server.
type Options struct {
	// Identity is the human readable player name
	Identity string

	// BusName defaults to org.mpris.MediaPlayer2.rhino.instance<pid>
	BusName string

	// Quit is called when a client asks the player to quit
	Quit func()
}

// Server publishes player state as MPRIS properties and forwards client
// calls to the player.
type Server struct {
	logger zerolog.Logger
	player ports.PlayerControl
	reader ports.MetadataReader
	bus    ports.EventBus
	opts   Options

	mu    sync.Mutex
	conn  *dbus.Conn
	props *prop.Properties
	subs  []domain.SubscriptionID
}

// NewServer creates a server. reader may be nil, disabling OpenUri.
func NewServer(
	logger zerolog.Logger,
	player ports.PlayerControl,
	reader ports.MetadataReader,
	bus ports.EventBus,
	opts Options,
) *Server {
	if opts.Identity == "" {
		opts.Identity = "Rhino"
	}
	if opts.BusName == "" {
		opts.BusName = fmt.Sprintf("org.mpris.MediaPlayer2.rhino.instance%d", os.Getpid())
	}
	return &Server{
		logger: logger.With().Str("surface", "mpris").Logger(),
		player: player,
		reader: reader,
		bus:    bus,
		opts:   opts,
	}
}

// Start connects to the session bus, exports the interfaces and claims the bus name.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return errors.Wrap(err, "connect to session bus")
	}
	if err := s.export(conn); err != nil {
		_ = conn.Close()
		return err
	}

	reply, err := conn.RequestName(s.opts.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "request name %s", s.opts.BusName)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return errors.Newf("bus name %s already taken", s.opts.BusName)
	}

	s.subscribe()
	s.logger.Info().Str("name", s.opts.BusName).Msg("mpris server started")
	return nil
}

func (s *Server) export(conn *dbus.Conn) error {
	st := s.player.State()

	root := &rootObject{quit: s.opts.Quit}
	player := &playerObject{s: s}

	if err := conn.Export(root, objectPath, rootIface); err != nil {
		return errors.Wrap(err, "export root interface")
	}
	if err := conn.Export(player, objectPath, playerIface); err != nil {
		return errors.Wrap(err, "export player interface")
	}

	metadata := NoTrackMetadata()
	if st.Position >= 0 {
		metadata = Metadata(st.Current)
	}

	props, err := prop.Export(conn, objectPath, prop.Map{
		rootIface: {
			"CanQuit":             {Value: s.opts.Quit != nil, Emit: prop.EmitConst},
			"CanRaise":            {Value: false, Emit: prop.EmitConst},
			"HasTrackList":        {Value: false, Emit: prop.EmitConst},
			"Identity":            {Value: s.opts.Identity, Emit: prop.EmitConst},
			"SupportedUriSchemes": {Value: []string{"file"}, Emit: prop.EmitConst},
			"SupportedMimeTypes": {
				Value: []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"},
				Emit:  prop.EmitConst,
			},
		},
		playerIface: {
			"PlaybackStatus": {Value: PlaybackStatus(st.Status), Emit: prop.EmitTrue},
			"LoopStatus": {
				Value: LoopStatus(st.Repeat), Writable: true, Emit: prop.EmitTrue,
				Callback: s.onLoopStatus,
			},
			"Rate": {
				Value: 1.0, Writable: true, Emit: prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					if r, ok := c.Value.(float64); !ok || r != 1.0 {
						return prop.ErrInvalidArg
					}
					return nil
				},
			},
			"Shuffle": {
				Value: st.Shuffled, Writable: true, Emit: prop.EmitTrue,
				Callback: s.onShuffle,
			},
			"Metadata": {Value: metadata, Emit: prop.EmitTrue},
			"Volume": {
				Value: Volume(st.Volume), Writable: true, Emit: prop.EmitTrue,
				Callback: s.onVolume,
			},
			"Position":      {Value: int64(0), Emit: prop.EmitFalse},
			"MinimumRate":   {Value: 1.0, Emit: prop.EmitConst},
			"MaximumRate":   {Value: 1.0, Emit: prop.EmitConst},
			"CanGoNext":     {Value: true, Emit: prop.EmitConst},
			"CanGoPrevious": {Value: true, Emit: prop.EmitConst},
			"CanPlay":       {Value: true, Emit: prop.EmitConst},
			"CanPause":      {Value: true, Emit: prop.EmitConst},
			"CanSeek":       {Value: true, Emit: prop.EmitConst},
			"CanControl":    {Value: true, Emit: prop.EmitConst},
		},
	})
	if err != nil {
		return errors.Wrap(err, "export properties")
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       rootIface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(rootIface),
			},
			{
				Name:       playerIface,
				Methods:    introspect.Methods(player),
				Properties: props.Introspection(playerIface),
				Signals: []introspect.Signal{{
					Name: "Seeked",
					Args: []introspect.Arg{{Name: "Position", Type: "x"}},
				}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return errors.Wrap(err, "export introspection")
	}

	s.mu.Lock()
	s.conn = conn
	s.props = props
	s.mu.Unlock()
	return nil
}

func (s *Server) subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = append(s.subs,
		s.bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
			s.set(playerIface, "Metadata", Metadata(e.(domain.TrackLoadedEvent).Song))
		}),
		s.bus.Subscribe(domain.EventNoMedia, func(domain.Event) {
			s.set(playerIface, "Metadata", NoTrackMetadata())
		}),
		s.bus.Subscribe(domain.EventPlaybackStateChanged, func(e domain.Event) {
			s.set(playerIface, "PlaybackStatus", PlaybackStatus(e.(domain.PlaybackStateChangedEvent).State))
		}),
		s.bus.Subscribe(domain.EventProgress, func(e domain.Event) {
			s.set(playerIface, "Position", Micros(e.(domain.ProgressEvent).Position))
		}),
		s.bus.Subscribe(domain.EventSeeked, func(e domain.Event) {
			us := Micros(e.(domain.SeekedEvent).Position)
			s.set(playerIface, "Position", us)
			s.emitSeeked(us)
		}),
		s.bus.Subscribe(domain.EventVolumeChanged, func(e domain.Event) {
			s.set(playerIface, "Volume", Volume(e.(domain.VolumeChangedEvent).Volume))
		}),
		s.bus.Subscribe(domain.EventRepeatModeChanged, func(e domain.Event) {
			s.set(playerIface, "LoopStatus", LoopStatus(e.(domain.RepeatModeChangedEvent).Mode))
		}),
		s.bus.Subscribe(domain.EventShuffleChanged, func(e domain.Event) {
			s.set(playerIface, "Shuffle", e.(domain.ShuffleChangedEvent).Shuffled)
		}),
	)
}

// set updates a property without running its write callback.
func (s *Server) set(iface, name string, v any) {
	s.mu.Lock()
	props := s.props
	s.mu.Unlock()
	if props != nil {
		props.SetMust(iface, name, v)
	}
}

func (s *Server) emitSeeked(us int64) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Emit(objectPath, playerIface+".Seeked", us); err != nil {
		s.logger.Debug().Err(err).Msg("failed to emit Seeked")
	}
}

// Property write callbacks run with the property table locked, and the player
// publishes the resulting change back into it, so commands are issued from a
// separate goroutine once the value is validated.

func (s *Server) onLoopStatus(c *prop.Change) *dbus.Error {
	status, ok := c.Value.(string)
	if !ok {
		return prop.ErrInvalidArg
	}
	mode, err := RepeatMode(status, s.player.State().Repeat)
	if err != nil {
		return prop.ErrInvalidArg
	}
	s.async("LoopStatus", func() error { return s.player.SetRepeatMode(mode) })
	return nil
}

func (s *Server) onShuffle(c *prop.Change) *dbus.Error {
	enabled, ok := c.Value.(bool)
	if !ok {
		return prop.ErrInvalidArg
	}
	s.async("Shuffle", func() error { return s.player.SetShuffle(enabled) })
	return nil
}

func (s *Server) onVolume(c *prop.Change) *dbus.Error {
	v, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	volume, err := VolumePercent(v)
	if err != nil {
		return prop.ErrInvalidArg
	}
	s.async("Volume", func() error { return s.player.SetVolume(volume) })
	return nil
}

func (s *Server) async(op string, cmd func() error) {
	go func() {
		if err := cmd(); err != nil {
			s.logger.Debug().Err(err).Str("op", op).Msg("mpris request rejected")
		}
	}()
}

func (s *Server) dbusError(op string, err error) *dbus.Error {
	if err == nil {
		return nil
	}
	s.logger.Debug().Err(err).Str("op", op).Msg("mpris request rejected")
	return dbus.MakeFailedError(err)
}

// Stop releases the bus name and detaches from the event bus.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.subs = nil

	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(s.opts.BusName); err != nil {
		s.logger.Debug().Err(err).Msg("failed to release bus name")
	}
	err := s.conn.Close()
	s.conn = nil
	s.props = nil
	return err
}

// rootObject implements org.mpris.MediaPlayer2.
type rootObject struct {
	quit func()
}

func (r *rootObject) Raise() *dbus.Error {
	return nil
}

func (r *rootObject) Quit() *dbus.Error {
	if r.quit != nil {
		go r.quit()
	}
	return nil
}

// playerObject implements org.mpris.MediaPlayer2.Player.
type playerObject struct {
	s *Server
}

func (p *playerObject) Next() *dbus.Error {
	return p.s.dbusError("Next", p.s.player.Next())
}

func (p *playerObject) Previous() *dbus.Error {
	return p.s.dbusError("Previous", p.s.player.Prev())
}

func (p *playerObject) Pause() *dbus.Error {
	return p.s.dbusError("Pause", p.s.player.Pause())
}

func (p *playerObject) PlayPause() *dbus.Error {
	return p.s.dbusError("PlayPause", p.s.player.PlayPause())
}

func (p *playerObject) Stop() *dbus.Error {
	return p.s.dbusError("Stop", p.s.player.Stop())
}

func (p *playerObject) Play() *dbus.Error {
	return p.s.dbusError("Play", p.s.player.Play())
}

// Seek moves relative to the current position. Offsets are microseconds.
func (p *playerObject) Seek(offset int64) *dbus.Error {
	target := max(p.s.player.Position()+FromMicros(offset), 0)
	if d := p.s.player.Duration(); d > 0 && target > d {
		return p.s.dbusError("Seek", p.s.player.Next())
	}
	return p.s.dbusError("Seek", p.s.player.Seek(target))
}

func (p *playerObject) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	err := p.s.player.SetPositionIfTrackMatches(string(trackID), FromMicros(position))
	if errors.Is(err, domain.ErrTrackMismatch) || errors.Is(err, domain.ErrInvalidPosition) {
		// Ignored per protocol
		return nil
	}
	return p.s.dbusError("SetPosition", err)
}

func (p *playerObject) OpenUri(uri string) *dbus.Error {
	if p.s.reader == nil {
		return dbus.MakeFailedError(errors.New("opening uris is not supported"))
	}
	path, err := PathFromURI(uri)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	song, err := p.s.reader.ReadSong(path)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	return p.s.dbusError("OpenUri", p.s.player.AddSongs([]domain.Song{song}, true))
}
