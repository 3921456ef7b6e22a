// Package economy holds the pure rules of the click economy: energy
// regeneration, upgrade pricing, click value, streak transitions and
// display name policy. Nothing here touches storage or the clock.
package economy

import "time"

// Regen is the result of bringing an energy balance up to date.
type Regen struct {
	Energy     int
	Checkpoint time.Time
	Gained     int
}

// Regenerate returns the energy balance as of now.
//
// One point is credited per whole interval elapsed since checkpoint, capped
// at maxEnergy. The checkpoint advances only by the time actually converted
// into energy, so a partial interval carries over to the next call. While the
// balance is full no time is banked and the checkpoint tracks now.
func Regenerate(energy, maxEnergy int, checkpoint, now time.Time, interval time.Duration) Regen {
	if maxEnergy < 0 {
		maxEnergy = 0
	}
	if energy < 0 {
		energy = 0
	}
	if energy >= maxEnergy {
		if now.After(checkpoint) {
			checkpoint = now
		}
		return Regen{Energy: maxEnergy, Checkpoint: checkpoint}
	}

	elapsed := now.Sub(checkpoint)
	if interval <= 0 || elapsed < interval {
		return Regen{Energy: energy, Checkpoint: checkpoint}
	}

	points := int64(elapsed / interval)
	room := int64(maxEnergy - energy)
	if points >= room {
		return Regen{Energy: maxEnergy, Checkpoint: now, Gained: int(room)}
	}

	return Regen{
		Energy:     energy + int(points),
		Checkpoint: checkpoint.Add(time.Duration(points) * interval),
		Gained:     int(points),
	}
}

// TimeToFull is how long until the balance reaches maxEnergy with no spending.
func TimeToFull(energy, maxEnergy int, checkpoint, now time.Time, interval time.Duration) time.Duration {
	if energy >= maxEnergy {
		return 0
	}
	full := checkpoint.Add(time.Duration(maxEnergy-energy) * interval)
	if !full.After(now) {
		return 0
	}
	return full.Sub(now)
}
