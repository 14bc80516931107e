// Package document parses the server-supplied status document (modern
// JSON or synthesized-from-legacy) into a typed ServerDocument.
// Software classification lives in internal/result.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mod is a single entry from a server's mod list.
type Mod struct {
	ID      string
	Version string
}

// Favicon holds a decoded server icon, retained only when the caller
// configured byte retention; Hash is always populated.
type Favicon struct {
	Hash  [32]byte
	Bytes []byte
}

// PlayerSampleEntry is one entry of the server-reported player sample.
// Not authoritative — a server may fabricate it.
type PlayerSampleEntry struct {
	Name string
	UUID string
}

// ServerDocument is the normalized, semi-structured description a
// server returns in response to a status request.
type ServerDocument struct {
	ProtocolID            int
	ProtocolName           string
	VersionName           string
	MOTDPlain              string
	MOTDRaw                json.RawMessage
	PlayersOnline          int
	PlayersMax             int
	PlayerSample           []PlayerSampleEntry
	Favicon                *Favicon
	Mods                   []Mod
	IsModded               bool
	HasForgeData           bool
	ModInfoType            string
	PreventsChatReports    bool
	EnforcesSecureChat     bool
	Raw                    json.RawMessage
}

// rawStatus mirrors the loosely-typed JSON a server returns. Mandatory
// fields (version, players) fail extraction explicitly; everything
// else degrades to its zero value.
type rawStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Description         json.RawMessage `json:"description"`
	Favicon             string          `json:"favicon"`
	PreventsChatReports bool            `json:"preventsChatReports"`
	EnforcesSecureChat  bool            `json:"enforcesSecureChat"`
	ModInfo             *struct {
		Type    string `json:"type"`
		ModList []struct {
			ModID   string `json:"modid"`
			Version string `json:"version"`
		} `json:"modList"`
	} `json:"modinfo"`
	ForgeData *struct {
		Mods []struct {
			ModID      string `json:"modId"`
			ModMarker  string `json:"modmarker"`
		} `json:"mods"`
	} `json:"forgeData"`
}

// ErrMissingField is returned when a mandatory field is absent.
type ErrMissingField struct{ Field string }

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("document: missing mandatory field %q", e.Field)
}

// Options configures parsing. RetainFavicon, when false, causes
// favicon bytes to be dropped after hashing (the hash is always kept).
type Options struct {
	RetainFavicon bool
}

// Parse decodes raw modern-protocol status JSON into a ServerDocument.
// It parses into a loosely-typed intermediate first, then extracts
// typed fields; version and players are mandatory, everything else
// degrades silently.
func Parse(raw []byte, opts Options) (*ServerDocument, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("document: bad json: %w", err)
	}
	root, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document: root value is not an object")
	}
	var rs rawStatus
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("document: bad json: %w", err)
	}
	if _, ok := root["version"]; !ok {
		return nil, &ErrMissingField{Field: "version"}
	}
	if _, ok := root["players"]; !ok {
		return nil, &ErrMissingField{Field: "players"}
	}

	doc := &ServerDocument{
		ProtocolID:          rs.Version.Protocol,
		VersionName:         rs.Version.Name,
		PlayersOnline:       rs.Players.Online,
		PlayersMax:          rs.Players.Max,
		PreventsChatReports: rs.PreventsChatReports,
		EnforcesSecureChat:  rs.EnforcesSecureChat,
		MOTDRaw:             rs.Description,
		Raw:                 json.RawMessage(raw),
	}

	doc.MOTDPlain = flattenMOTD(rs.Description)

	for _, s := range rs.Players.Sample {
		doc.PlayerSample = append(doc.PlayerSample, PlayerSampleEntry{Name: s.Name, UUID: s.ID})
	}

	doc.Mods, doc.IsModded = extractMods(rs)
	doc.HasForgeData = rs.ForgeData != nil
	if rs.ModInfo != nil {
		doc.ModInfoType = rs.ModInfo.Type
	}

	if rs.Favicon != "" {
		fav, err := decodeFavicon(rs.Favicon, opts.RetainFavicon)
		if err == nil {
			doc.Favicon = fav
		}
	}

	return doc, nil
}

func extractMods(rs rawStatus) ([]Mod, bool) {
	seen := make(map[string]struct{})
	var mods []Mod

	add := func(id, version string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		mods = append(mods, Mod{ID: id, Version: version})
	}

	if rs.ForgeData != nil {
		for _, m := range rs.ForgeData.Mods {
			add(m.ModID, m.ModMarker)
		}
	}
	if rs.ModInfo != nil {
		for _, m := range rs.ModInfo.ModList {
			add(m.ModID, m.Version)
		}
	}

	isModded := rs.ForgeData != nil || (rs.ModInfo != nil && strings.EqualFold(rs.ModInfo.Type, "FML")) || len(mods) > 0
	return mods, isModded
}

// flattenMOTD collapses the description field (either a plain string
// or a structured chat object) into plain text, stripping "§"-prefixed
// color/formatting codes.
func flattenMOTD(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return stripFormatting(s)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		var b strings.Builder
		appendChatText(&b, obj)
		return stripFormatting(b.String())
	}
	return ""
}

func appendChatText(b *strings.Builder, node map[string]any) {
	if text, ok := node["text"].(string); ok {
		b.WriteString(text)
	}
	if extra, ok := node["extra"].([]any); ok {
		for _, item := range extra {
			switch v := item.(type) {
			case string:
				b.WriteString(v)
			case map[string]any:
				appendChatText(b, v)
			}
		}
	}
}

func stripFormatting(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
