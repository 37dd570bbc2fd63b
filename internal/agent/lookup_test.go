package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
)

func TestLookupByNumberHit(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
		PriceCents:       intPtr(5499),
		StockStatus:      models.StockInStock,
	})

	reply := e.handlePartLookup(context.Background(), "", "PS11701542",
		models.Entities{PartNumber: "PS11701542"}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "Water Filter") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	if len(reply.Cards) != 1 {
		t.Fatalf("Cards = %d, want 1", len(reply.Cards))
	}
	if !hasQuickReply(reply, "Add to cart") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}

func TestLookupByNumberMissLinksOut(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handlePartLookup(context.Background(), "", "PS99999999",
		models.Entities{PartNumber: "PS99999999"}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "PS99999999") {
		t.Errorf("AssistantText = %q, want the part named", reply.AssistantText)
	}
	if len(reply.Cards) != 1 {
		t.Fatalf("Cards = %d, want the search link card", len(reply.Cards))
	}
	data, ok := reply.Cards[0].Data.(models.ProductCardData)
	if !ok {
		t.Fatalf("card data = %T, want ProductCardData", reply.Cards[0].Data)
	}
	if !strings.Contains(data.ProductURL, "Search.aspx") {
		t.Errorf("ProductURL = %q, want a PartSelect search link", data.ProductURL)
	}
}

func TestLookupRefreshesMissingPrice(t *testing.T) {
	scraper := &fakeScraper{
		priceStockFn: func(string) (scrape.PriceStock, error) {
			return scrape.PriceStock{PriceCents: intPtr(5499), Availability: models.StockInStock}, nil
		},
	}
	e, st := newTestEngine(t, WithScraper(scraper))
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
		ProductURL:       "https://www.partselect.com/PS11701542.htm",
	})

	reply := e.handlePartLookup(context.Background(), "", "PS11701542",
		models.Entities{PartNumber: "PS11701542"}, &models.Context{})

	data := reply.Cards[0].Data.(models.ProductCardData)
	if data.PriceCents == nil || *data.PriceCents != 5499 {
		t.Errorf("PriceCents = %v, want live price 5499", data.PriceCents)
	}

	part, err := st.GetPartByNumber("PS11701542")
	if err != nil {
		t.Fatal(err)
	}
	if part.PriceCents == nil || *part.PriceCents != 5499 {
		t.Errorf("stored PriceCents = %v, want persisted live price", part.PriceCents)
	}
}

func TestLookupRefreshesStockWithoutLivePrice(t *testing.T) {
	scraper := &fakeScraper{
		priceStockFn: func(string) (scrape.PriceStock, error) {
			// The page listed availability but no parseable price.
			return scrape.PriceStock{Availability: models.StockInStock}, nil
		},
	}
	e, st := newTestEngine(t, WithScraper(scraper))
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
		PriceCents:       intPtr(5499),
		StockStatus:      models.StockUnknown,
		ProductURL:       "https://www.partselect.com/PS11701542.htm",
	})

	reply := e.handlePartLookup(context.Background(), "", "PS11701542",
		models.Entities{PartNumber: "PS11701542"}, &models.Context{})

	data := reply.Cards[0].Data.(models.ProductCardData)
	if data.StockStatus != models.StockInStock {
		t.Errorf("StockStatus = %q, want live availability", data.StockStatus)
	}
	if data.PriceCents == nil || *data.PriceCents != 5499 {
		t.Errorf("PriceCents = %v, want the stored price kept", data.PriceCents)
	}

	part, err := st.GetPartByNumber("PS11701542")
	if err != nil {
		t.Fatal(err)
	}
	if part.StockStatus != models.StockInStock {
		t.Errorf("stored StockStatus = %q, want persisted availability", part.StockStatus)
	}
	if part.PriceCents == nil || *part.PriceCents != 5499 {
		t.Errorf("stored PriceCents = %v, want the stored price kept", part.PriceCents)
	}
}

func TestSearchPartsByComponent(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11752778",
		Name:             "Ice Maker Assembly",
		ApplianceType:    models.ApplianceRefrigerator,
	})

	reply := e.handlePartLookup(context.Background(), "", "I need a new ice maker for my fridge",
		models.Entities{PartComponent: "ice maker", ApplianceType: models.ApplianceRefrigerator},
		&models.Context{Appliance: models.ApplianceRefrigerator})

	if len(reply.Cards) == 0 {
		t.Fatal("expected a matching part card")
	}
	if !strings.Contains(reply.AssistantText, "1 parts") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
}

func TestSearchPartsRecoversSubjectFromHistory(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11752778",
		Name:             "Ice Maker Assembly",
		ApplianceType:    models.ApplianceRefrigerator,
	})
	if err := st.AddMessage(models.ChatMessage{
		ID: "m1", SessionID: "s1", Role: "user",
		Content: "my ice maker is acting up",
	}); err != nil {
		t.Fatal(err)
	}

	reply := e.handlePartLookup(context.Background(), "s1", "find a part",
		models.Entities{}, &models.Context{})

	if len(reply.Cards) == 0 {
		t.Fatalf("expected the history subject to drive the search, got %q", reply.AssistantText)
	}
}

func TestSearchPartsNoMatches(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handlePartLookup(context.Background(), "", "find a part", models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "couldn't find any parts") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
}
