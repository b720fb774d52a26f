package ghost

import "context"

// --------------------------------------------------------------------------
// Aura Regeneration
// --------------------------------------------------------------------------

// RegenerateSharedAura recomputes the shared aura layer from the current
// sharing relationships: every locally owned entity that relates down to a
// shared entity is scheduled for ghosting to each process sharing it (one
// layer of neighboring entities around every shared boundary).
//
// The whole recomputation is one reconciliation run that starts from an
// empty receive set: the protocol's diffing retains what is still wanted
// and destroys the rest. Collective.
func (db *DB) RegenerateSharedAura(ctx context.Context) error {
	var send []EntityProc

	for _, h := range db.commList {
		e := db.arena.Get(h)
		for _, sh := range e.Sharing() {
			for _, uh := range e.Upward() {
				ue := db.arena.Get(uh)
				// Locally owned and not already visible on the sharing
				// process: ghost it there.
				if ue.Owner == db.Rank() && !db.InShared(uh, sh.Proc) {
					send = append(send, EntityProc{Entity: uh, Proc: sh.Proc})
				}
			}
		}
	}

	log.Debugf("rank %d: regenerating aura with %d candidate sends", db.Rank(), len(send))
	return db.internalChangeGhosting(ctx, db.AuraLayer(), send, nil, true)
}
