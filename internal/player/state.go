package player

import "time"

// PlaybackState represents the current playback state
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// String returns the MPD name of the state
func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "play"
	case StatePaused:
		return "pause"
	default:
		return "stop"
	}
}

// GetState returns the current playback state
func (p *Player) GetState() PlaybackState {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped || p.pl.CurrentIndex() < 0 {
		return StateStopped
	}
	if p.eng.Playing() {
		return StatePlaying
	}
	return StatePaused
}

// PlaybackTiming contains current playback timing information
type PlaybackTiming struct {
	Elapsed   time.Duration
	Duration  time.Duration
	Remaining time.Duration
}

// GetPlaybackTiming returns timing for the active deck.
// Returns nil while stopped or while the duration is unknown.
func (p *Player) GetPlaybackTiming() *PlaybackTiming {
	if p.GetState() == StateStopped {
		return nil
	}
	active := p.eng.Active()
	duration, ok := active.Duration()
	if !ok || duration <= 0 {
		return nil
	}
	elapsed := min(max(active.Position(), 0), duration)

	return &PlaybackTiming{
		Elapsed:   elapsed,
		Duration:  duration,
		Remaining: duration - elapsed,
	}
}
