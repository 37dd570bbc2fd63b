package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/partpilot/partpilot/internal/models"
)

func TestHandleCartOperationWithoutCart(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleCartOperation(models.IntentCartView, "show cart", models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "empty") {
		t.Errorf("AssistantText = %q, want empty-cart message", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Find parts") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}

func TestUpdateCartQuantityNeedsANumber(t *testing.T) {
	e, _ := newTestEngine(t)
	cctx := &models.Context{CartID: "c1"}

	reply := e.handleCartOperation(models.IntentCartUpdate, "make that a couple", models.Entities{}, cctx)

	if !strings.Contains(reply.AssistantText, "quantity") {
		t.Errorf("AssistantText = %q, want quantity question", reply.AssistantText)
	}
}

func TestUpdateCartQuantityTargetsLastAddedPart(t *testing.T) {
	e, st := newTestEngine(t)
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	cctx := &models.Context{CartID: "c1", LastAddedPart: "PS11701542"}

	reply := e.handleCartOperation(models.IntentCartUpdate, "make that 2", models.Entities{}, cctx)

	if reply.AssistantText != "Updated PS11701542 quantity to 2." {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	items, err := st.GetCartItems("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("cart items = %+v, want quantity 2", items)
	}
}

func TestUpdateCartQuantityFallsBackToNewestItem(t *testing.T) {
	e, st := newTestEngine(t)
	now := time.Now()
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 1, CreatedAt: now.Add(-time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS429868", Quantity: 1, CreatedAt: now}); err != nil {
		t.Fatal(err)
	}

	reply := e.handleCartOperation(models.IntentCartUpdate, "change quantity 3", models.Entities{},
		&models.Context{CartID: "c1"})

	if !strings.Contains(reply.AssistantText, "PS429868") {
		t.Errorf("AssistantText = %q, want the newest cart row targeted", reply.AssistantText)
	}
}

func TestRemoveCartItemListsChoices(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{PartSelectNumber: "PS11701542", Name: "Water Filter", ApplianceType: models.ApplianceRefrigerator})
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	reply := e.handleCartOperation(models.IntentCartRemove, "remove something from my cart",
		models.Entities{}, &models.Context{CartID: "c1"})

	if !strings.Contains(reply.AssistantText, "Which item") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	if !hasQuickReply(reply, "PS11701542 (Water Filter)") {
		t.Errorf("QuickReplies = %v, want labeled item choice", reply.QuickReplies)
	}
}

func TestRemoveCartItemByNumber(t *testing.T) {
	e, st := newTestEngine(t)
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	reply := e.handleCartOperation(models.IntentCartRemove, "remove PS11701542 from my cart",
		models.Entities{PartNumber: "PS11701542"}, &models.Context{CartID: "c1"})

	if !strings.Contains(reply.AssistantText, "Removed PS11701542") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	items, err := st.GetCartItems("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("cart items = %+v, want empty", items)
	}
}

func TestViewCartSubtotalSkipsUnpricedItems(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542", Name: "Water Filter",
		ApplianceType: models.ApplianceRefrigerator, PriceCents: intPtr(999),
	})
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS429868", Name: "Drain Pump",
		ApplianceType: models.ApplianceDishwasher,
	})
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS429868", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	reply := e.handleCartOperation(models.IntentCartView, "show cart", models.Entities{},
		&models.Context{CartID: "c1"})

	if !strings.Contains(reply.AssistantText, "$9.99") {
		t.Errorf("AssistantText = %q, want the priced line", reply.AssistantText)
	}
	if !strings.Contains(reply.AssistantText, "Price unavailable") {
		t.Errorf("AssistantText = %q, want unpriced line flagged", reply.AssistantText)
	}
	if !strings.Contains(reply.AssistantText, "Subtotal: $9.99") {
		t.Errorf("AssistantText = %q, want subtotal over priced items only", reply.AssistantText)
	}
}

func TestCheckoutCartBuildsCard(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542", Name: "Water Filter",
		ApplianceType: models.ApplianceRefrigerator, PriceCents: intPtr(999),
	})
	if err := st.AddCartItem(models.CartItem{CartID: "c1", PartNumber: "PS11701542", Quantity: 2}); err != nil {
		t.Fatal(err)
	}

	reply := e.handleCartOperation(models.IntentCartCheckout, "proceed to checkout", models.Entities{},
		&models.Context{CartID: "c1"})

	if len(reply.Cards) != 1 {
		t.Fatalf("Cards = %d, want the checkout card", len(reply.Cards))
	}
	data, ok := reply.Cards[0].Data.(models.CheckoutCardData)
	if !ok {
		t.Fatalf("card data = %T, want CheckoutCardData", reply.Cards[0].Data)
	}
	if data.Items != 1 {
		t.Errorf("Items = %d, want 1", data.Items)
	}
	if data.TotalCents != 1998 {
		t.Errorf("TotalCents = %d, want 1998", data.TotalCents)
	}
	if !strings.Contains(data.CheckoutURL, "partselect.com/cart") {
		t.Errorf("CheckoutURL = %q", data.CheckoutURL)
	}
}
