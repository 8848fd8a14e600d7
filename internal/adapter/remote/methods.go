package remote

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
	ErrUnknownMethod = errors.New("unknown method")
)

type handlerFunc func(p ports.PlayerControl, params json.RawMessage) (any, error)

var methodMap = map[string]handlerFunc{
	MethodState: func(p ports.PlayerControl, _ json.RawMessage) (any, error) {
		return newState(p), nil
	},
	MethodPlayPause: noParams(ports.PlayerControl.PlayPause),
	MethodPlay:      noParams(ports.PlayerControl.Play),
	MethodPause:     noParams(ports.PlayerControl.Pause),
	MethodStop:      noParams(ports.PlayerControl.Stop),
	MethodNext:      noParams(ports.PlayerControl.Next),
	MethodPrev:      noParams(ports.PlayerControl.Prev),
	MethodClear:     noParams(ports.PlayerControl.ClearQueue),
	MethodSeek: withParams(func(p ports.PlayerControl, params SeekParams) error {
		return p.Seek(time.Duration(params.PositionMs) * time.Millisecond)
	}),
	MethodSetPosition: withParams(func(p ports.PlayerControl, params SetPositionParams) error {
		return p.SetPositionIfTrackMatches(params.TrackID, time.Duration(params.PositionMs)*time.Millisecond)
	}),
	MethodSetVolume: withParams(func(p ports.PlayerControl, params VolumeParams) error {
		return p.SetVolume(params.Volume)
	}),
	MethodSetLoop: withParams(func(p ports.PlayerControl, params LoopParams) error {
		mode, err := domain.ParseRepeatMode(params.Mode)
		if err != nil {
			return errors.Mark(err, ErrInvalidParams)
		}
		return p.SetRepeatMode(mode)
	}),
	MethodCycleRepeat: func(p ports.PlayerControl, _ json.RawMessage) (any, error) {
		mode, err := p.CycleRepeat()
		if err != nil {
			return nil, err
		}
		return LoopParams{Mode: mode.String()}, nil
	},
	MethodSetShuffle: withParams(func(p ports.PlayerControl, params ShuffleParams) error {
		return p.SetShuffle(params.Enabled)
	}),
	MethodPlaySong: withParams(func(p ports.PlayerControl, params IndexParams) error {
		return p.PlaySong(params.Index)
	}),
	MethodRemove: withParams(func(p ports.PlayerControl, params RemoveParams) error {
		return p.RemoveSongs(params.Indices)
	}),
	MethodMove: withParams(func(p ports.PlayerControl, params MoveParams) error {
		return p.MoveSong(params.From, params.To)
	}),
}

func noParams(cmd func(ports.PlayerControl) error) handlerFunc {
	return func(p ports.PlayerControl, _ json.RawMessage) (any, error) {
		if err := cmd(p); err != nil {
			return nil, err
		}
		return newState(p), nil
	}
}

func withParams[T any](cmd func(ports.PlayerControl, T) error) handlerFunc {
	return func(p ports.PlayerControl, raw json.RawMessage) (any, error) {
		if len(raw) == 0 {
			return nil, ErrMissingParams
		}
		var params T
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode params"), ErrInvalidParams)
		}
		if err := cmd(p, params); err != nil {
			return nil, err
		}
		return newState(p), nil
	}
}

// handleRequest dispatches one request and returns its result.
func handleRequest(p ports.PlayerControl, req RequestObject) (any, error) {
	fn, ok := methodMap[req.Method]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", req.Method)
	}
	return fn(p, req.Params)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrUnknownMethod):
		return CodeMethodNotFound
	case errors.Is(err, ErrMissingParams), errors.Is(err, ErrInvalidParams):
		return CodeInvalidParams
	default:
		return CodeRejected
	}
}

func newState(p ports.PlayerControl) StateResponse {
	st := p.State()
	resp := StateResponse{
		Status:       st.Status.String(),
		Repeat:       st.Repeat.String(),
		Shuffled:     st.Shuffled,
		Volume:       st.Volume,
		Index:        st.Position,
		Presentation: st.Presentation,
		QueueLength:  len(st.Queue),
	}
	if st.Position >= 0 {
		cur := newSong(st.Current)
		resp.Current = &cur
		resp.PositionMs = p.Position().Milliseconds()
		resp.DurationMs = p.Duration().Milliseconds()
	}
	return resp
}

func newQueue(p ports.PlayerControl) QueueResponse {
	st := p.State()
	return QueueResponse{
		Presentation: st.Presentation,
		Songs:        lo.Map(st.Queue, func(s domain.Song, _ int) SongResponse { return newSong(s) }),
	}
}

// notification converts a player event into the params pushed to clients.
// Scan progress is not forwarded.
func notification(e domain.Event) (Notification, bool) {
	n := Notification{JSONRPC: "2.0", Method: string(e.Type())}

	switch ev := e.(type) {
	case domain.TrackLoadedEvent:
		n.Params = map[string]any{"song": newSong(ev.Song), "index": ev.Index}
	case domain.NoMediaEvent, domain.EndOfQueueEvent:
	case domain.PlaybackStateChangedEvent:
		n.Params = map[string]any{"status": ev.State.String()}
	case domain.ProgressEvent:
		n.Params = map[string]any{"positionMs": ev.Position.Milliseconds(), "durationMs": ev.Duration.Milliseconds()}
	case domain.SeekedEvent:
		n.Params = map[string]any{"positionMs": ev.Position.Milliseconds()}
	case domain.TrackErrorEvent:
		msg := ""
		if ev.Error != nil {
			msg = ev.Error.Error()
		}
		n.Params = map[string]any{"song": newSong(ev.Song), "error": msg}
	case domain.VolumeChangedEvent:
		n.Params = map[string]any{"volume": ev.Volume}
	case domain.RepeatModeChangedEvent:
		n.Params = map[string]any{"mode": ev.Mode.String()}
	case domain.ShuffleChangedEvent:
		n.Params = map[string]any{"shuffled": ev.Shuffled}
	case domain.QueueIndexChangedEvent:
		n.Params = map[string]any{"index": ev.Index, "presentation": ev.Presentation}
	case domain.QueueChangedEvent:
		n.Params = map[string]any{
			"songs": lo.Map(ev.Queue, func(s domain.Song, _ int) SongResponse { return newSong(s) }),
		}
	case domain.LibraryUpdatedEvent:
		n.Params = map[string]any{"added": len(ev.Added)}
	default:
		return Notification{}, false
	}
	return n, true
}
