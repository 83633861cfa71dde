package command

// CallbackID names a UI follow-up callback. The id rides inside the
// envelope so the origin can recognize its own command when the
// scheduled copy comes back; only the origin peer resolves it.
type CallbackID uint8

const CallbackNone CallbackID = 0

// Callback is invoked exactly once per originating dispatch that
// completed its network round trip, with the executed result. It must
// not touch simulation state; it drives UI follow-up only.
type Callback func(result Cost, tile Tile, p1, p2 uint32, p3 uint64, cmd uint32)

// CallbackTable is the fixed id -> function mapping, built once at
// startup.
type CallbackTable struct {
	table map[CallbackID]Callback
	next  CallbackID
}

func NewCallbackTable() *CallbackTable {
	return &CallbackTable{table: map[CallbackID]Callback{}, next: CallbackNone + 1}
}

// Register adds a callback and returns its id.
func (t *CallbackTable) Register(cb Callback) CallbackID {
	if cb == nil {
		panic("command: nil callback")
	}
	id := t.next
	t.next++
	t.table[id] = cb
	return id
}

// Invoke runs the named callback if registered. Unknown ids (including
// CallbackNone) are ignored: a client may legitimately receive its own
// envelope back with a callback another build of the binary registered.
func (t *CallbackTable) Invoke(id CallbackID, result Cost, e *Envelope) {
	cb, ok := t.table[id]
	if !ok {
		return
	}
	cb(result, e.Tile, e.P1, e.P2, e.P3, e.Cmd)
}
