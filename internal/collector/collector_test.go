package collector

import "testing"

func TestCollectionUniversePrependsMajors(t *testing.T) {
	got := collectionUniverse([]string{"ADA/USDT", "SOL/USDT"})
	want := []string{"BTC/USDT", "ETH/USDT", "ADA/USDT", "SOL/USDT"}

	if len(got) != len(want) {
		t.Fatalf("collectionUniverse = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collectionUniverse[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectionUniverseEmptyAltcoins(t *testing.T) {
	got := collectionUniverse(nil)
	if len(got) != 2 || got[0] != "BTC/USDT" || got[1] != "ETH/USDT" {
		t.Errorf("collectionUniverse(nil) = %v, want the majors alone", got)
	}
}
