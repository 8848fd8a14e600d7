package remote

import (
	"encoding/json"
	"net/http"

	"github.com/rhinomusic/rhino/internal/domain"
)

// JSON-RPC methods accepted over the websocket.
const (
	MethodState       = "state"
	MethodPlayPause   = "playPause"
	MethodPlay        = "play"
	MethodPause       = "pause"
	MethodStop        = "stop"
	MethodNext        = "next"
	MethodPrev        = "prev"
	MethodSeek        = "seek"
	MethodSetPosition = "setPosition"
	MethodSetVolume   = "setVolume"
	MethodSetLoop     = "setLoop"
	MethodCycleRepeat = "cycleRepeat"
	MethodSetShuffle  = "setShuffle"
	MethodPlaySong    = "playSong"
	MethodRemove      = "remove"
	MethodClear       = "clear"
	MethodMove        = "move"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeRejected       = 1
)

// RequestObject is a JSON-RPC 2.0 request. ID is kept raw so string and
// number ids are echoed back unchanged; a missing ID marks a notification.
type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ResponseObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// Notification is a request without an id, pushed to every client.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type SeekParams struct {
	PositionMs int64 `json:"positionMs"`
}

type SetPositionParams struct {
	TrackID    string `json:"trackId"`
	PositionMs int64  `json:"positionMs"`
}

type VolumeParams struct {
	Volume int `json:"volume"`
}

type LoopParams struct {
	Mode string `json:"mode"`
}

type ShuffleParams struct {
	Enabled bool `json:"enabled"`
}

type IndexParams struct {
	Index int `json:"index"`
}

type RemoveParams struct {
	Indices []int `json:"indices"`
}

type MoveParams struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type SongResponse struct {
	TrackID     string `json:"trackId"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumArtist string `json:"albumArtist,omitempty"`
	Album       string `json:"album"`
	File        string `json:"file"`
	Image       string `json:"image,omitempty"`
	Track       int    `json:"track,omitempty"`
	DurationMs  int64  `json:"durationMs"`
}

func newSong(s domain.Song) SongResponse {
	return SongResponse{
		TrackID:     domain.TrackID(s),
		Title:       s.Title,
		Artist:      s.Artist,
		AlbumArtist: s.AlbumArtist,
		Album:       s.Album,
		File:        s.FileReference,
		Image:       s.ImagePath,
		Track:       s.Track,
		DurationMs:  s.Duration.Milliseconds(),
	}
}

type StateResponse struct {
	Status       string        `json:"status"`
	Repeat       string        `json:"repeat"`
	Shuffled     bool          `json:"shuffled"`
	Volume       int           `json:"volume"`
	Index        int           `json:"index"`
	Presentation int           `json:"presentation"`
	Current      *SongResponse `json:"current,omitempty"`
	PositionMs   int64         `json:"positionMs"`
	DurationMs   int64         `json:"durationMs"`
	QueueLength  int           `json:"queueLength"`
}

func (sr *StateResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type QueueResponse struct {
	Presentation int            `json:"presentation"`
	Songs        []SongResponse `json:"songs"`
}

func (qr *QueueResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
