package redis

import "testing"

func TestParseSideSortsBidsDescending(t *testing.T) {
	raw := map[string]string{
		"27350.5": "1.5",
		"27345":   "2",
		"27352":   "0.4",
	}
	levels := parseSide(raw, true)
	if len(levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(levels))
	}
	if levels[0].Price != 27352 || levels[2].Price != 27345 {
		t.Errorf("bids not sorted best-first: %+v", levels)
	}
}

func TestParseSideSortsAsksAscending(t *testing.T) {
	raw := map[string]string{
		"27360": "2",
		"27355": "1",
	}
	levels := parseSide(raw, false)
	if len(levels) != 2 || levels[0].Price != 27355 {
		t.Errorf("asks not sorted best-first: %+v", levels)
	}
}

func TestParseSideDropsMalformedEntries(t *testing.T) {
	raw := map[string]string{
		"abc":   "1",
		"-5":    "1",
		"100":   "xyz",
		"101":   "-2",
		"27355": "1.5",
	}
	levels := parseSide(raw, false)
	if len(levels) != 1 || levels[0].Price != 27355 {
		t.Errorf("levels = %+v, want single valid level", levels)
	}
}
