// Package domain defines events for the event-driven architecture.
// Events are the outbound notifications of the player; adapters subscribe to them.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackLoaded          EventType = "track.loaded"
	EventNoMedia              EventType = "track.no_media"
	EventPlaybackStateChanged EventType = "playback.state_changed"
	EventProgress             EventType = "track.progress"
	EventSeeked               EventType = "track.seeked"
	EventTrackError           EventType = "track.error"

	// Volume events
	EventVolumeChanged EventType = "volume.changed"

	// Playback mode events
	EventRepeatModeChanged EventType = "repeat.changed"
	EventShuffleChanged    EventType = "shuffle.changed"

	// Queue events
	EventQueueIndexChanged EventType = "queue.index_changed"
	EventQueueChanged      EventType = "queue.changed"
	EventEndOfQueue        EventType = "queue.end"

	// Library scanning events
	EventScanStarted    EventType = "scan.started"
	EventScanProgress   EventType = "scan.progress"
	EventScanCompleted  EventType = "scan.completed"
	EventScanCancelled  EventType = "scan.cancelled"
	EventLibraryUpdated EventType = "library.updated"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when the media engine confirms the requested song is loaded.
type TrackLoadedEvent struct {
	baseEvent
	Song  Song
	Index int // canonical index
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType {
	return EventTrackLoaded
}

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(song Song, index int) TrackLoadedEvent {
	return TrackLoadedEvent{
		baseEvent: newBaseEvent(),
		Song:      song,
		Index:     index,
	}
}

// NoMediaEvent is published when the media engine has no source.
type NoMediaEvent struct {
	baseEvent
}

// Type returns the event type.
func (e NoMediaEvent) Type() EventType {
	return EventNoMedia
}

// NewNoMediaEvent creates a new NoMediaEvent.
func NewNoMediaEvent() NoMediaEvent {
	return NoMediaEvent{baseEvent: newBaseEvent()}
}

// PlaybackStateChangedEvent is published when the engine reports play, pause or stop.
type PlaybackStateChangedEvent struct {
	baseEvent
	State PlaybackStatus
}

// Type returns the event type.
func (e PlaybackStateChangedEvent) Type() EventType {
	return EventPlaybackStateChanged
}

// NewPlaybackStateChangedEvent creates a new PlaybackStateChangedEvent.
func NewPlaybackStateChangedEvent(state PlaybackStatus) PlaybackStateChangedEvent {
	return PlaybackStateChangedEvent{
		baseEvent: newBaseEvent(),
		State:     state,
	}
}

// ProgressEvent is published periodically during playback.
type ProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e ProgressEvent) Type() EventType {
	return EventProgress
}

// NewProgressEvent creates a new ProgressEvent.
func NewProgressEvent(position, duration time.Duration) ProgressEvent {
	return ProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// SeekedEvent is published after a successful seek.
type SeekedEvent struct {
	baseEvent
	Position time.Duration
}

// Type returns the event type.
func (e SeekedEvent) Type() EventType {
	return EventSeeked
}

// NewSeekedEvent creates a new SeekedEvent.
func NewSeekedEvent(position time.Duration) SeekedEvent {
	return SeekedEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
	}
}

// TrackErrorEvent is published when a song cannot be loaded or played.
type TrackErrorEvent struct {
	baseEvent
	Song  Song
	Error error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType {
	return EventTrackError
}

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(song Song, err error) TrackErrorEvent {
	return TrackErrorEvent{
		baseEvent: newBaseEvent(),
		Song:      song,
		Error:     err,
	}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume int // 0 to 100
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType {
	return EventVolumeChanged
}

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume int) VolumeChangedEvent {
	return VolumeChangedEvent{
		baseEvent: newBaseEvent(),
		Volume:    volume,
	}
}

// RepeatModeChangedEvent is published when the repeat mode changes.
type RepeatModeChangedEvent struct {
	baseEvent
	Mode RepeatMode
}

// Type returns the event type.
func (e RepeatModeChangedEvent) Type() EventType {
	return EventRepeatModeChanged
}

// NewRepeatModeChangedEvent creates a new RepeatModeChangedEvent.
func NewRepeatModeChangedEvent(mode RepeatMode) RepeatModeChangedEvent {
	return RepeatModeChangedEvent{
		baseEvent: newBaseEvent(),
		Mode:      mode,
	}
}

// ShuffleChangedEvent is published when the shuffle flag changes.
type ShuffleChangedEvent struct {
	baseEvent
	Shuffled bool
}

// Type returns the event type.
func (e ShuffleChangedEvent) Type() EventType {
	return EventShuffleChanged
}

// NewShuffleChangedEvent creates a new ShuffleChangedEvent.
func NewShuffleChangedEvent(shuffled bool) ShuffleChangedEvent {
	return ShuffleChangedEvent{
		baseEvent: newBaseEvent(),
		Shuffled:  shuffled,
	}
}

// QueueIndexChangedEvent is published when the now-playing position moves.
// Index is canonical; Presentation is where that song appears in the queue view.
// Both are -1 when nothing is selected.
type QueueIndexChangedEvent struct {
	baseEvent
	Index        int
	Presentation int
}

// Type returns the event type.
func (e QueueIndexChangedEvent) Type() EventType {
	return EventQueueIndexChanged
}

// NewQueueIndexChangedEvent creates a new QueueIndexChangedEvent.
func NewQueueIndexChangedEvent(index, presentation int) QueueIndexChangedEvent {
	return QueueIndexChangedEvent{
		baseEvent:    newBaseEvent(),
		Index:        index,
		Presentation: presentation,
	}
}

// QueueChangedEvent is published when queue contents or order change.
type QueueChangedEvent struct {
	baseEvent
	Queue []Song // presentation order
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType {
	return EventQueueChanged
}

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(queue []Song) QueueChangedEvent {
	return QueueChangedEvent{
		baseEvent: newBaseEvent(),
		Queue:     queue,
	}
}

// EndOfQueueEvent is published when playback runs off the end with repeat off.
type EndOfQueueEvent struct {
	baseEvent
}

// Type returns the event type.
func (e EndOfQueueEvent) Type() EventType {
	return EventEndOfQueue
}

// NewEndOfQueueEvent creates a new EndOfQueueEvent.
func NewEndOfQueueEvent() EndOfQueueEvent {
	return EndOfQueueEvent{baseEvent: newBaseEvent()}
}

// ScanStartedEvent is published when a library scan starts.
type ScanStartedEvent struct {
	baseEvent
	Path string
}

// Type returns the event type.
func (e ScanStartedEvent) Type() EventType {
	return EventScanStarted
}

// NewScanStartedEvent creates a new ScanStartedEvent.
func NewScanStartedEvent(path string) ScanStartedEvent {
	return ScanStartedEvent{
		baseEvent: newBaseEvent(),
		Path:      path,
	}
}

// ScanProgressEvent is published periodically during a library scan.
type ScanProgressEvent struct {
	baseEvent
	Progress ScanProgress
}

// Type returns the event type.
func (e ScanProgressEvent) Type() EventType {
	return EventScanProgress
}

// NewScanProgressEvent creates a new ScanProgressEvent.
func NewScanProgressEvent(progress ScanProgress) ScanProgressEvent {
	return ScanProgressEvent{
		baseEvent: newBaseEvent(),
		Progress:  progress,
	}
}

// ScanCompletedEvent is published when a library scan completes.
type ScanCompletedEvent struct {
	baseEvent
	Songs []Song
}

// Type returns the event type.
func (e ScanCompletedEvent) Type() EventType {
	return EventScanCompleted
}

// NewScanCompletedEvent creates a new ScanCompletedEvent.
func NewScanCompletedEvent(songs []Song) ScanCompletedEvent {
	return ScanCompletedEvent{
		baseEvent: newBaseEvent(),
		Songs:     songs,
	}
}

// ScanCancelledEvent is published when a library scan is canceled.
type ScanCancelledEvent struct {
	baseEvent
	Reason string
}

// Type returns the event type.
func (e ScanCancelledEvent) Type() EventType {
	return EventScanCancelled
}

// NewScanCancelledEvent creates a new ScanCancelledEvent.
func NewScanCancelledEvent(reason string) ScanCancelledEvent {
	return ScanCancelledEvent{
		baseEvent: newBaseEvent(),
		Reason:    reason,
	}
}

// LibraryUpdatedEvent is published when a watched folder gains new songs.
type LibraryUpdatedEvent struct {
	baseEvent
	Added []Song
}

// Type returns the event type.
func (e LibraryUpdatedEvent) Type() EventType {
	return EventLibraryUpdated
}

// NewLibraryUpdatedEvent creates a new LibraryUpdatedEvent.
func NewLibraryUpdatedEvent(added []Song) LibraryUpdatedEvent {
	return LibraryUpdatedEvent{
		baseEvent: newBaseEvent(),
		Added:     added,
	}
}
