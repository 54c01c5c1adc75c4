package status

import "testing"

// TestModernSuccess covers scenario S1 from spec.md.
func TestModernSuccess(t *testing.T) {
	raw := `{"version":{"name":"1.21","protocol":770},"players":{"max":20,"online":3,"sample":[]},"description":"Welcome"}`
	ps, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if ps.VersionName != "1.21" {
		t.Errorf("VersionName = %q, want 1.21", ps.VersionName)
	}
	if ps.ProtocolVersion != 770 {
		t.Errorf("ProtocolVersion = %d, want 770", ps.ProtocolVersion)
	}
	if ps.ServerSoftware != SoftwareVanilla {
		t.Errorf("ServerSoftware = %q, want vanilla", ps.ServerSoftware)
	}
	if ps.MOTDClean != "Welcome" {
		t.Errorf("MOTDClean = %q, want Welcome", ps.MOTDClean)
	}
	if ps.MaxPlayers != 20 || ps.OnlinePlayers != 3 {
		t.Errorf("players = %d/%d, want 3/20", ps.OnlinePlayers, ps.MaxPlayers)
	}
	if ps.OnlineMode != OnlineModeUnknown {
		t.Errorf("OnlineMode = %q, want unknown", ps.OnlineMode)
	}
}

// TestForgeMods covers scenario S2 from spec.md.
func TestForgeMods(t *testing.T) {
	raw := `{"version":{"name":"1.20.1-forge-47.2.0","protocol":763},
		"forgeData":{"mods":[{"modId":"jei","version":"15.2"},{"modId":"jade","version":"11.0"}]}}`
	ps, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if ps.ServerSoftware != SoftwareForge {
		t.Errorf("ServerSoftware = %q, want forge", ps.ServerSoftware)
	}
	if len(ps.Mods) != 2 {
		t.Fatalf("len(Mods) = %d, want 2", len(ps.Mods))
	}
	for _, m := range ps.Mods {
		if m.Type != ModTypeForge {
			t.Errorf("mod %s has type %q, want forge", m.ID, m.Type)
		}
	}
	if ps.Mods[0].ID != "jei" || ps.Mods[0].Version != "15.2" {
		t.Errorf("mods[0] = %+v, want jei@15.2", ps.Mods[0])
	}
	if ps.Mods[1].ID != "jade" || ps.Mods[1].Version != "11.0" {
		t.Errorf("mods[1] = %+v, want jade@11.0", ps.Mods[1])
	}
}

// TestPaperViaMOTD covers scenario S3 from spec.md.
func TestPaperViaMOTD(t *testing.T) {
	raw := `{"version":{"name":"1.20.4","protocol":765},
		"description":{"extra":[{"text":"Paper server","color":"gold"}],"text":""}}`
	ps, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if ps.ServerSoftware != SoftwarePaper {
		t.Errorf("ServerSoftware = %q, want paper", ps.ServerSoftware)
	}
	if ps.MOTDClean != "Paper server" {
		t.Errorf("MOTDClean = %q, want %q", ps.MOTDClean, "Paper server")
	}
	if ps.MOTDRaw == "" {
		t.Error("MOTDRaw is empty, want the serialized description JSON")
	}
}

// TestMOTDRoundTrip covers property 7 from spec.md: cleaning an
// already-produced motd_clean again (code stripping plus whitespace
// collapsing) leaves it unchanged.
func TestMOTDRoundTrip(t *testing.T) {
	docs := []string{
		`"Plain string MOTD"`,
		`{"text":"Hello ","extra":[{"text":"World","color":"red"}]}`,
		`[{"text":"A"},{"text":"B","color":"§invalid"}]`,
	}
	for _, d := range docs {
		first, firstClean, firstFormatted := normalizeMOTD([]byte(d))
		_, _ = first, firstFormatted
		secondClean := cleanLegacyAndAmpersand(firstClean)
		secondClean = collapseWhitespace(secondClean)
		if secondClean != firstClean {
			t.Errorf("re-cleaning %q changed motd_clean: %q -> %q", d, firstClean, secondClean)
		}
	}
}

func TestClassifyKeywordPriority(t *testing.T) {
	cases := []struct {
		version string
		want    Software
	}{
		{"Purpur 1.20.4", SoftwarePurpur},
		{"Paper 1.20.4", SoftwarePaper},
		{"Velocity 3.2", SoftwareVelocity},
		{"1.21", SoftwareVanilla},
		{"some custom string", SoftwareUnknown},
	}
	for _, c := range cases {
		doc := &rawDocument{}
		got := classifySoftware(doc, c.version, "")
		if got != c.want {
			t.Errorf("classifySoftware(%q) = %q, want %q", c.version, got, c.want)
		}
	}
}

func TestDetermineOnlineModeHeuristic(t *testing.T) {
	tru := true
	doc := &rawDocument{EnforcesSecureChat: &tru}
	if got := determineOnlineMode(doc, ""); got != OnlineModeOnline {
		t.Errorf("got %q, want online", got)
	}

	doc2 := &rawDocument{}
	if got := determineOnlineMode(doc2, "Cracked server, join now!"); got != OnlineModeOffline {
		t.Errorf("got %q, want offline", got)
	}

	doc3 := &rawDocument{}
	if got := determineOnlineMode(doc3, "A normal MOTD"); got != OnlineModeUnknown {
		t.Errorf("got %q, want unknown", got)
	}
}
