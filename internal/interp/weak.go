package interp

// weakRecord is one entry of the weak liveness table.
type weakRecord struct {
	alive bool
	weak  int64
	inUse bool
}

// weakTable is the arena of liveness records that weak references point
// into. A record goes alive -> dead once and is recycled only when it is
// dead and no weak handle refers to it, so a handle held by a weak
// reference never observes its record alive again. All methods run with
// the machine lock held.
type weakTable struct {
	recs []weakRecord
	free []int64
}

// get returns the in-use record h.
func (t *weakTable) get(h int64) (*weakRecord, error) {
	if h < 0 || h >= int64(len(t.recs)) {
		return nil, faultf(ErrStaleHandle, "weak handle %d out of range", h)
	}
	r := &t.recs[h]
	if !r.inUse {
		return nil, faultf(ErrStaleHandle, "weak handle %d refers to a recycled record", h)
	}
	return r, nil
}

func (t *weakTable) alloc() int64 {
	var h int64
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.recs = append(t.recs, weakRecord{})
		h = int64(len(t.recs) - 1)
	}
	t.recs[h] = weakRecord{alive: true, inUse: true}
	return h
}

func (t *weakTable) maybeRecycle(h int64, r *weakRecord) {
	if !r.alive && r.weak == 0 {
		r.inUse = false
		t.free = append(t.free, h)
	}
}

func (t *weakTable) acquire(h int64) error {
	r, err := t.get(h)
	if err != nil {
		return err
	}
	r.weak++
	return nil
}

func (t *weakTable) release(h int64) error {
	r, err := t.get(h)
	if err != nil {
		return err
	}
	if r.weak == 0 {
		return faultf(ErrStaleHandle, "weak handle %d released more often than acquired", h)
	}
	r.weak--
	t.maybeRecycle(h, r)
	return nil
}

func (t *weakTable) isAlive(h int64) (bool, error) {
	r, err := t.get(h)
	if err != nil {
		return false, err
	}
	return r.alive, nil
}

func (t *weakTable) markDead(h int64) error {
	r, err := t.get(h)
	if err != nil {
		return err
	}
	if !r.alive {
		return faultf(ErrStaleHandle, "weak record %d marked dead twice", h)
	}
	r.alive = false
	t.maybeRecycle(h, r)
	return nil
}

// inUse returns the number of records not yet recycled.
func (t *weakTable) inUse() int64 {
	return int64(len(t.recs) - len(t.free))
}
