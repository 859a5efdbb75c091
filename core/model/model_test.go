package model

import "testing"

func TestWorkOrderStatusRoundTrip(t *testing.T) {
	for st := StatusSubmitted; st <= StatusCancelled; st++ {
		got, ok := ParseWorkOrderStatus(st.String())
		if !ok || got != st {
			t.Fatalf("status %d: parsed %v ok=%v", st, got, ok)
		}
	}
	if _, ok := ParseWorkOrderStatus("bogus"); ok {
		t.Fatal("expected bogus status to fail parsing")
	}
}

func TestTerminalForAutomation(t *testing.T) {
	terminal := map[WorkOrderStatus]bool{
		StatusDispatched: true,
		StatusCompleted:  true,
		StatusCancelled:  true,
	}
	for st := StatusSubmitted; st <= StatusCancelled; st++ {
		if got := st.TerminalForAutomation(); got != terminal[st] {
			t.Fatalf("status %v: terminal=%v", st, got)
		}
	}
}

func TestQuoteStatusRoundTrip(t *testing.T) {
	for st := QuotePending; st <= QuoteExpired; st++ {
		got, ok := ParseQuoteStatus(st.String())
		if !ok || got != st {
			t.Fatalf("status %d: parsed %v ok=%v", st, got, ok)
		}
	}
	if _, ok := ParseQuoteStatus("fax"); ok {
		t.Fatal("expected unknown quote status to fail parsing")
	}
}

func TestChannelRoundTrip(t *testing.T) {
	for c := ChannelSMS; c <= ChannelSystem; c++ {
		got, ok := ParseChannel(c.String())
		if !ok || got != c {
			t.Fatalf("channel %d: parsed %v ok=%v", c, got, ok)
		}
	}
	if _, ok := ParseChannel("pager"); ok {
		t.Fatal("expected unknown channel to fail parsing")
	}
}

func TestTradeTypeRoundTrip(t *testing.T) {
	for tr := range tradeNames {
		got, ok := ParseTradeType(tr.String())
		if !ok || got != tr {
			t.Fatalf("trade %d: parsed %v ok=%v", tr, got, ok)
		}
	}
	if q := TradeRoofing.SearchQuery(); q != "roofing contractor" {
		t.Fatalf("unexpected search query %q", q)
	}
	if q := TradeType(99).SearchQuery(); q != "contractor" {
		t.Fatalf("unexpected fallback query %q", q)
	}
}

func TestVendorHasChannel(t *testing.T) {
	v := Vendor{Phone: "+15125550100"}
	if !v.HasChannel(ChannelSMS) || !v.HasChannel(ChannelVoice) {
		t.Fatal("phone should enable sms and voice")
	}
	if v.HasChannel(ChannelEmail) {
		t.Fatal("no email address, email channel should be off")
	}
	v.Email = "ops@example.com"
	if !v.HasChannel(ChannelEmail) {
		t.Fatal("email address should enable email channel")
	}
	if v.HasChannel(ChannelSystem) {
		t.Fatal("system channel is never a contact channel")
	}
}
