package status

import (
	"regexp"
	"strings"
)

func extractMods(doc *rawDocument) []Mod {
	var mods []Mod

	if doc.ForgeData != nil {
		for _, m := range doc.ForgeData.Mods {
			mods = append(mods, Mod{ID: m.ModID, Version: m.Version, Type: ModTypeForge})
		}
	}
	if doc.ModInfo != nil {
		for _, m := range doc.ModInfo.ModList {
			mods = append(mods, Mod{ID: m.ModID, Version: m.Version, Type: ModTypeForge})
		}
	}
	if doc.NeoForgeData != nil {
		for _, m := range doc.NeoForgeData.Mods {
			mods = append(mods, Mod{ID: m.ModID, Version: m.Version, Type: ModTypeNeoForge})
		}
	}
	for _, m := range doc.FabricMods {
		mods = append(mods, Mod{ID: m.ModID, Version: m.Version, Type: ModTypeFabric})
	}
	for _, p := range doc.Plugins {
		mods = append(mods, Mod{ID: p.Name, Version: p.Version, Type: ModTypePlugin})
	}

	return mods
}

var vanillaVersionPattern = regexp.MustCompile(`^1\.\d+(\.\d+)?$`)

// keywordSoftware is the ordered (priority matters) substring→software
// table used against both the version name and, as a fallback, the
// cleaned MOTD.
var keywordSoftware = []struct {
	keyword  string
	software Software
}{
	{"purpur", SoftwarePurpur},
	{"folia", SoftwareFolia},
	{"pufferfish", SoftwarePufferfish},
	{"paper", SoftwarePaper},
	{"spigot", SoftwareSpigot},
	{"bukkit", SoftwareBukkit},
	{"craftbukkit", SoftwareBukkit},
	{"fabric", SoftwareFabric},
	{"quilt", SoftwareQuilt},
	{"velocity", SoftwareVelocity},
	{"bungeecord", SoftwareBungeeCord},
	{"waterfall", SoftwareWaterfall},
	{"forge", SoftwareForge},
	{"fml", SoftwareForge},
}

func classifySoftware(doc *rawDocument, versionName, motdClean string) Software {
	if doc.ForgeData != nil || doc.ModInfo != nil {
		if strings.Contains(strings.ToLower(versionName), "neoforge") {
			return SoftwareNeoForge
		}
		return SoftwareForge
	}

	if (doc.IsModded != nil && *doc.IsModded) || (doc.Modded != nil && *doc.Modded) {
		return SoftwareNeoForge
	}

	if sw, ok := matchKeyword(versionName); ok {
		return sw
	}

	if sw, ok := matchKeyword(motdClean); ok {
		return sw
	}

	if vanillaVersionPattern.MatchString(versionName) {
		return SoftwareVanilla
	}

	return SoftwareUnknown
}

func matchKeyword(haystack string) (Software, bool) {
	lower := strings.ToLower(haystack)
	for _, kw := range keywordSoftware {
		if strings.Contains(lower, kw.keyword) {
			return kw.software, true
		}
	}
	return "", false
}

var offlineMOTDKeywords = []string{
	"cracked", "offline", "no premium", "no-premium", "pirate",
	"tlauncher", "free", "non-premium",
}

func determineOnlineMode(doc *rawDocument, motdClean string) OnlineMode {
	if doc.OnlineModeField != nil {
		if *doc.OnlineModeField {
			return OnlineModeOnline
		}
		return OnlineModeOffline
	}

	if doc.EnforcesSecureChat != nil && *doc.EnforcesSecureChat {
		return OnlineModeOnline
	}
	if doc.PreventsChatReports != nil && *doc.PreventsChatReports {
		return OnlineModeOffline
	}

	lower := strings.ToLower(motdClean)
	for _, kw := range offlineMOTDKeywords {
		if strings.Contains(lower, kw) {
			return OnlineModeOffline
		}
	}

	return OnlineModeUnknown
}
