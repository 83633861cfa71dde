package command

import (
	"fmt"
	"strings"
)

// MaxCostParams bounds the number of message parameters an error can
// carry for localized rendering.
const MaxCostParams = 16

type costFlags uint8

const (
	costSuccess costFlags = 1 << iota
)

// costAux holds the rarely-used parts of a Cost. It is allocated on
// first use and deep-copied when the Cost is cloned, so Cost keeps
// value semantics.
type costAux struct {
	extraMsg   Message
	result     uint32
	tile       Tile
	params     []uint32
	paramsPack uint32 // data pack that defines the parameter strings
}

func (a *costAux) clone() *costAux {
	if a == nil {
		return nil
	}
	c := *a
	c.params = append([]uint32(nil), a.params...)
	return &c
}

// Cost is the outcome of one command attempt: a monetary delta, an
// expense category and a success/failure state with optional message
// payload. A Cost is built up by the handler during a single dispatch
// and is immutable once the dispatch returns.
type Cost struct {
	cost    Money
	expense ExpenseType
	flags   costFlags
	msg     Message
	aux     *costAux
}

// NewCost returns an empty successful result with no cost.
func NewCost() Cost {
	return Cost{expense: ExpenseInvalid, flags: costSuccess}
}

// ErrorCost returns a failed result carrying the given message.
func ErrorCost(msg Message) Cost {
	return Cost{expense: ExpenseInvalid, msg: msg}
}

// DualErrorCost returns a failed result with a primary and a secondary
// message.
func DualErrorCost(msg, extra Message) Cost {
	c := ErrorCost(msg)
	c.ensureAux().extraMsg = extra
	return c
}

// CostOf returns a successful zero result accumulating under the given
// expense category.
func CostOf(expense ExpenseType) Cost {
	return Cost{expense: expense, flags: costSuccess}
}

// CostOfAmount returns a successful result with a starting cost.
func CostOfAmount(expense ExpenseType, amount Money) Cost {
	return Cost{cost: amount, expense: expense, flags: costSuccess}
}

func (c *Cost) ensureAux() *costAux {
	if c.aux == nil {
		c.aux = &costAux{tile: InvalidTile}
	}
	return c.aux
}

// Clone returns a deep copy; the auxiliary block is never shared.
func (c Cost) Clone() Cost {
	c.aux = c.aux.clone()
	return c
}

// AddMoney adds a flat amount to the accumulated cost.
func (c *Cost) AddMoney(amount Money) { c.cost += amount }

// AddCost merges another result into this one. Costs always accumulate
// (failed sub-steps still surface what they would have cost), but if
// other failed the merged result fails with other's error fields.
func (c *Cost) AddCost(other Cost) {
	c.cost += other.cost
	if other.Failed() {
		c.flags &^= costSuccess
		c.msg = other.msg
		if other.aux != nil {
			c.aux = other.aux.clone()
		}
	}
}

// MultiplyCost scales the accumulated cost.
func (c *Cost) MultiplyCost(factor int) { c.cost *= Money(factor) }

// MakeError turns this result into a failure with the given message,
// keeping the accumulated cost visible.
func (c *Cost) MakeError(msg Message) {
	if msg == MsgNone {
		panic("command: MakeError with MsgNone")
	}
	c.flags &^= costSuccess
	c.msg = msg
	if c.aux != nil {
		c.aux.extraMsg = MsgNone
	}
}

// UseParams attaches message parameters (and the data pack defining
// their meaning) for localized error rendering.
func (c *Cost) UseParams(pack uint32, params []uint32) {
	if len(params) > MaxCostParams {
		params = params[:MaxCostParams]
	}
	a := c.ensureAux()
	a.paramsPack = pack
	a.params = append([]uint32(nil), params...)
}

func (c *Cost) SetTile(t Tile)         { c.ensureAux().tile = t }
func (c *Cost) SetResultData(r uint32) { c.ensureAux().result = r }

func (c Cost) Money() Money         { return c.cost }
func (c Cost) Expense() ExpenseType { return c.expense }
func (c Cost) Succeeded() bool      { return c.flags&costSuccess != 0 }
func (c Cost) Failed() bool         { return c.flags&costSuccess == 0 }

// ErrorMessage returns the primary message, or MsgNone for successful
// results regardless of what is stored. This lets a success carry an
// informational message without it reading as an error.
func (c Cost) ErrorMessage() Message {
	if c.Succeeded() {
		return MsgNone
	}
	return c.msg
}

// ExtraErrorMessage returns the secondary message, MsgNone on success.
func (c Cost) ExtraErrorMessage() Message {
	if c.Succeeded() || c.aux == nil {
		return MsgNone
	}
	return c.aux.extraMsg
}

// Tile returns the affected tile, InvalidTile if none was recorded.
func (c Cost) Tile() Tile {
	if c.aux == nil {
		return InvalidTile
	}
	return c.aux.tile
}

// ResultData returns the opaque result payload set by the handler.
func (c Cost) ResultData() uint32 {
	if c.aux == nil {
		return 0
	}
	return c.aux.result
}

// Params returns the message parameters and their data pack.
func (c Cost) Params() (pack uint32, params []uint32) {
	if c.aux == nil {
		return 0, nil
	}
	return c.aux.paramsPack, c.aux.params
}

// IsSuccessWithMessage reports whether this is a logical success that
// still carries an informational message for display.
func (c Cost) IsSuccessWithMessage() bool {
	return c.Succeeded() && c.msg != MsgNone
}

// MakeSuccessWithMessage marks a failed result as successful while
// keeping its message. The message must already be set.
func (c *Cost) MakeSuccessWithMessage() {
	if c.msg == MsgNone {
		panic("command: MakeSuccessWithMessage without a message")
	}
	c.flags |= costSuccess
}

// UnwrapSuccessWithMessage returns the failure-shaped view of a
// success-with-message result. It is invalid to call this on a value
// that was never placed in that state.
func (c Cost) UnwrapSuccessWithMessage() Cost {
	if !c.IsSuccessWithMessage() {
		panic("command: UnwrapSuccessWithMessage on plain result")
	}
	r := c.Clone()
	r.flags &^= costSuccess
	return r
}

// Summary renders a one-line human readable account of the result,
// substituting any message parameters.
func (c Cost) Summary() string {
	var b strings.Builder
	if c.Failed() {
		fmt.Fprintf(&b, "failed: %s", renderMessage(c.msg, c.aux))
		if extra := c.ExtraErrorMessage(); extra != MsgNone {
			fmt.Fprintf(&b, " (%s)", extra.Text())
		}
	} else {
		b.WriteString("success")
		if c.IsSuccessWithMessage() {
			fmt.Fprintf(&b, ": %s", renderMessage(c.msg, c.aux))
		}
	}
	fmt.Fprintf(&b, ", cost %d", c.cost)
	if t := c.Tile(); t != InvalidTile {
		fmt.Fprintf(&b, ", tile %d", t)
	}
	return b.String()
}

func renderMessage(msg Message, aux *costAux) string {
	text := msg.Text()
	if aux == nil || len(aux.params) == 0 || !strings.Contains(text, "%") {
		return text
	}
	args := make([]any, len(aux.params))
	for i, p := range aux.params {
		args[i] = p
	}
	// Extra params beyond the verbs in the format string are dropped.
	n := strings.Count(text, "%")
	if n < len(args) {
		args = args[:n]
	}
	return fmt.Sprintf(text, args...)
}
