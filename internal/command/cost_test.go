package command

import (
	"strings"
	"testing"
)

func TestCostAddCostPropagatesFailure(t *testing.T) {
	ok := CostOfAmount(ExpenseConstruction, 100)
	bad := ErrorCost(MsgAreaNotClear)
	bad.AddMoney(40)

	merged := ok.Clone()
	merged.AddCost(bad)

	if !merged.Failed() {
		t.Fatalf("merge with failed result must fail")
	}
	if merged.ErrorMessage() != MsgAreaNotClear {
		t.Fatalf("merged error = %v, want MsgAreaNotClear", merged.ErrorMessage())
	}
	// Cost accumulation still happens for UI transparency.
	if merged.Money() != 140 {
		t.Fatalf("merged cost = %d, want 140", merged.Money())
	}

	// Order must not matter for the outcome.
	merged2 := bad.Clone()
	merged2.AddCost(ok)
	if !merged2.Failed() || merged2.ErrorMessage() != MsgAreaNotClear {
		t.Fatalf("failure must survive merging a later success")
	}
	if merged2.Money() != 140 {
		t.Fatalf("merged2 cost = %d, want 140", merged2.Money())
	}
}

func TestCostErrorGettersGatedBySuccess(t *testing.T) {
	c := DualErrorCost(MsgAreaNotClear, MsgLandSloped)
	if c.ErrorMessage() != MsgAreaNotClear || c.ExtraErrorMessage() != MsgLandSloped {
		t.Fatalf("failure must expose both messages")
	}

	c.MakeSuccessWithMessage()
	if c.Failed() {
		t.Fatalf("expected success after MakeSuccessWithMessage")
	}
	// Error getters must read as "no error" on a successful value even
	// though a message is stored.
	if c.ErrorMessage() != MsgNone || c.ExtraErrorMessage() != MsgNone {
		t.Fatalf("success must hide error messages")
	}
	if !c.IsSuccessWithMessage() {
		t.Fatalf("message state must still be observable")
	}

	unwrapped := c.UnwrapSuccessWithMessage()
	if !unwrapped.Failed() || unwrapped.ErrorMessage() != MsgAreaNotClear {
		t.Fatalf("unwrap must restore the failure view")
	}
}

func TestCostUnwrapPlainSuccessPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewCost().UnwrapSuccessWithMessage()
}

func TestCostExpenseAndCostDefinedOnFailure(t *testing.T) {
	c := CostOfAmount(ExpenseProperty, 250)
	c.MakeError(MsgOwnedByAnotherCompany)
	if c.Money() != 250 {
		t.Fatalf("cost accumulated before failure must stay visible, got %d", c.Money())
	}
	if c.Expense() != ExpenseProperty {
		t.Fatalf("expense type must stay defined on failure")
	}
}

func TestCostMultiplyAndResultData(t *testing.T) {
	c := CostOfAmount(ExpenseConstruction, 7)
	c.MultiplyCost(4)
	if c.Money() != 28 {
		t.Fatalf("cost = %d, want 28", c.Money())
	}
	c.SetResultData(0xBEEF)
	c.SetTile(Tile(42))
	cp := c.Clone()
	cp.SetResultData(1)
	if c.ResultData() != 0xBEEF || c.Tile() != 42 {
		t.Fatalf("clone must not share the aux block")
	}
}

func TestCostSummaryParams(t *testing.T) {
	c := ErrorCost(MsgNotEnoughCash)
	c.UseParams(0, []uint32{1234})
	s := c.Summary()
	if !strings.Contains(s, "1234") {
		t.Fatalf("summary must substitute params, got %q", s)
	}
	if pack, params := c.Params(); pack != 0 || len(params) != 1 || params[0] != 1234 {
		t.Fatalf("params round trip broken: %d %v", pack, params)
	}
}
