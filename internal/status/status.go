// Package status decodes the JSON document returned by a Minecraft status
// request into a structured record: version, MOTD (raw and normalized),
// players, favicon, mods and a best-effort software/online-mode
// classification. All field reads are defensive — an unexpected shape
// degrades to "unknown"/empty rather than failing the probe, per the raw,
// adversarial nature of the input (any host on the internet can answer a
// status request with whatever it wants).
package status

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Software is the classified server implementation.
type Software string

const (
	SoftwareVanilla     Software = "vanilla"
	SoftwarePaper       Software = "paper"
	SoftwareSpigot      Software = "spigot"
	SoftwareBukkit      Software = "bukkit"
	SoftwarePurpur      Software = "purpur"
	SoftwareFolia       Software = "folia"
	SoftwarePufferfish  Software = "pufferfish"
	SoftwareForge       Software = "forge"
	SoftwareNeoForge    Software = "neoforge"
	SoftwareFabric      Software = "fabric"
	SoftwareQuilt       Software = "quilt"
	SoftwareVelocity    Software = "velocity"
	SoftwareBungeeCord  Software = "bungeecord"
	SoftwareWaterfall   Software = "waterfall"
	SoftwareUnknown     Software = "unknown"
)

// OnlineMode is the heuristic verdict on whether the server requires
// Mojang-authenticated logins. "unknown" is the expected common case —
// do not read more confidence into it than the heuristic in
// determineOnlineMode supports.
type OnlineMode string

const (
	OnlineModeOnline  OnlineMode = "online"
	OnlineModeOffline OnlineMode = "offline"
	OnlineModeUnknown OnlineMode = "unknown"
)

// ModType classifies which loader or plugin platform reported a Mod.
type ModType string

const (
	ModTypeForge    ModType = "forge"
	ModTypeNeoForge ModType = "neoforge"
	ModTypeFabric   ModType = "fabric"
	ModTypePlugin   ModType = "plugin"
)

// Mod is one mod or plugin advertised by the server.
type Mod struct {
	ID      string
	Version string
	Type    ModType
}

// Player is one sample-list entry from the players object.
type Player struct {
	UUID string // hyphens stripped
	Name string
}

// ParsedServer is the fully decoded, classified status document.
type ParsedServer struct {
	VersionName     string
	ProtocolVersion int

	MOTDRaw       string
	MOTDClean     string
	MOTDFormatted string

	MaxPlayers    int
	OnlinePlayers int
	SamplePlayers []Player

	Favicon     string // raw base64 payload, as received
	FaviconHash string

	Mods []Mod

	ServerSoftware Software
	OnlineMode     OnlineMode

	EnforcesSecureChat  bool
	PreventsChatReports bool

	// Extra is not filled by Parse and is always nil; top-level fields
	// outside the ones modelled above (e.g. Paper forks' previewsChat)
	// are dropped.
	Extra map[string]json.RawMessage
}

// rawDocument mirrors the status JSON's top-level shape loosely: every
// field is optional and independently defaulted on read.
type rawDocument struct {
	Version *struct {
		Name     json.RawMessage `json:"name"`
		Protocol json.RawMessage `json:"protocol"`
	} `json:"version"`
	Players *struct {
		Max    json.RawMessage `json:"max"`
		Online json.RawMessage `json:"online"`
		Sample []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"sample"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon"`

	ForgeData *struct {
		Mods []struct {
			ModID   string `json:"modId"`
			Version string `json:"version"`
		} `json:"mods"`
	} `json:"forgeData"`
	ModInfo *struct {
		ModList []struct {
			ModID   string `json:"modid"`
			Version string `json:"modmarker"`
		} `json:"modList"`
	} `json:"modinfo"`
	NeoForgeData *struct {
		Mods []struct {
			ModID   string `json:"modId"`
			Version string `json:"version"`
		} `json:"mods"`
	} `json:"neoForgeData"`
	FabricMods []struct {
		ModID   string `json:"modId"`
		Version string `json:"version"`
	} `json:"fabricMods"`
	Plugins []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"plugins"`

	IsModded            *bool `json:"isModded"`
	Modded              *bool `json:"modded"`
	OnlineModeField     *bool `json:"onlineMode"`
	EnforcesSecureChat  *bool `json:"enforcesSecureChat"`
	PreventsChatReports *bool `json:"preventsChatReports"`
}

// Parse decodes raw (the JSON body of a status reply) into a ParsedServer.
// It never returns an error for malformed-but-valid-JSON content: a field
// of an unexpected type is left at its default. Only input that is not
// JSON at all is an error, which the coordinator records as a
// PROTOCOL_ERROR.
func Parse(raw []byte) (*ParsedServer, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Unmarshal skips mistyped fields and still decodes the rest.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, err
		}
	}

	ps := &ParsedServer{
		VersionName:     "Unknown",
		ProtocolVersion: -1,
	}

	if doc.Version != nil {
		if name, ok := decodeJSONString(doc.Version.Name); ok && name != "" {
			ps.VersionName = name
		}
		if proto, ok := decodeJSONInt(doc.Version.Protocol); ok {
			ps.ProtocolVersion = proto
		}
	}

	if doc.Players != nil {
		if max, ok := decodeJSONInt(doc.Players.Max); ok {
			ps.MaxPlayers = max
		}
		if online, ok := decodeJSONInt(doc.Players.Online); ok {
			ps.OnlinePlayers = online
		}
		for _, s := range doc.Players.Sample {
			ps.SamplePlayers = append(ps.SamplePlayers, Player{
				UUID: stripUUIDHyphens(s.ID),
				Name: s.Name,
			})
		}
	}

	ps.MOTDRaw, ps.MOTDClean, ps.MOTDFormatted = normalizeMOTD(doc.Description)

	if doc.Favicon != "" {
		ps.Favicon = doc.Favicon
		ps.FaviconHash = faviconHash(doc.Favicon)
	}

	ps.Mods = extractMods(&doc)

	ps.ServerSoftware = classifySoftware(&doc, ps.VersionName, ps.MOTDClean)

	if doc.EnforcesSecureChat != nil {
		ps.EnforcesSecureChat = *doc.EnforcesSecureChat
	}
	if doc.PreventsChatReports != nil {
		ps.PreventsChatReports = *doc.PreventsChatReports
	}
	ps.OnlineMode = determineOnlineMode(&doc, ps.MOTDClean)

	return ps, nil
}

// faviconHash returns the hex MD5 digest of the base64 favicon payload,
// matching spec.md's "hex digest of the base64 payload" wording literally
// (the digest is over the base64 text as received, not the decoded PNG
// bytes — this is what lets two servers serving byte-identical favicons
// in different base64 line-wrapping styles hash differently, which is
// intentional: it mirrors the original implementation's dedup key).
func faviconHash(favicon string) string {
	sum := md5.Sum([]byte(favicon))
	return hex.EncodeToString(sum[:])
}

func stripUUIDHyphens(id string) string {
	out := make([]byte, 0, len(id))
	for _, r := range id {
		if r != '-' {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// decodeJSONString tolerates both a bare JSON string and oddball shapes
// some forks emit (numbers, null); it never fails the parse.
func decodeJSONString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

func decodeJSONInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	return 0, false
}
