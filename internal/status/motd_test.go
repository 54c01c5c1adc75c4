package status

import "testing"

func TestNormalizeMOTDFormattedCarriesColorAndStyle(t *testing.T) {
	raw := `{"text":"Hello ","bold":true,"extra":[{"text":"World","color":"red"}]}`
	_, clean, formatted := normalizeMOTD([]byte(raw))

	if clean != "Hello World" {
		t.Errorf("clean = %q, want %q", clean, "Hello World")
	}
	want := "§lHello §cWorld"
	if formatted != want {
		t.Errorf("formatted = %q, want %q", formatted, want)
	}
}

func TestNormalizeMOTDFormattedBareStringHasNoCodes(t *testing.T) {
	_, clean, formatted := normalizeMOTD([]byte(`"A plain §cMOTD"`))
	if formatted != clean {
		t.Errorf("formatted = %q, want it to equal clean %q for a bare string description", formatted, clean)
	}
	if formatted != "A plain MOTD" {
		t.Errorf("formatted = %q, want legacy code stripped", formatted)
	}
}

func TestLegacyColorCodeNamedAndHex(t *testing.T) {
	if code, ok := legacyColorCode("red"); !ok || code != 'c' {
		t.Errorf("legacyColorCode(red) = %q, %v, want 'c', true", code, ok)
	}
	if code, ok := legacyColorCode("#FFFFFF"); !ok || code != 'f' {
		t.Errorf("legacyColorCode(#FFFFFF) = %q, %v, want 'f', true", code, ok)
	}
	if code, ok := legacyColorCode("#000000"); !ok || code != '0' {
		t.Errorf("legacyColorCode(#000000) = %q, %v, want '0', true", code, ok)
	}
	if code, ok := legacyColorCode("#FF0000"); !ok || code != 'c' {
		t.Errorf("legacyColorCode(#FF0000) = %q, %v, want 'c', true", code, ok)
	}
	if _, ok := legacyColorCode("not-a-color"); ok {
		t.Error("legacyColorCode(not-a-color) = ok, want false")
	}
}
