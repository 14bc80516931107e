package protocol

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/LK-Customs/Pingcrafty/internal/document"
	"github.com/LK-Customs/Pingcrafty/internal/wire"
	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
)

// legacyFieldSeparator is the NUL code unit separating fields in a
// pre-1.7 legacy ping response payload.
const legacyFieldSeparator = rune(0)

// readLegacyResponse consumes the 0xFF kick-packet frame (already
// peeked, not yet read) and synthesizes a ServerDocument from its
// null-separated UCS-2 payload: protocol_version, version, motd,
// current_players, max_players, preceded by a literal "§1" marker.
func readLegacyResponse(br *bufio.Reader) (*document.ServerDocument, error) {
	if _, err := br.ReadByte(); err != nil { // consume the 0xFF lead byte
		return nil, classifyReadError(err)
	}

	lengthBuf := make([]byte, 2)
	if _, err := readFull(br, lengthBuf); err != nil {
		return nil, classifyReadError(err)
	}
	shortCount := int(lengthBuf[0])<<8 | int(lengthBuf[1])

	payload := make([]byte, shortCount*2)
	if _, err := readFull(br, payload); err != nil {
		return nil, classifyReadError(err)
	}

	text := wire.DecodeUCS2BE(payload)
	fields := strings.Split(text, string(legacyFieldSeparator))

	if len(fields) < 6 || !strings.HasPrefix(fields[0], "§1") {
		return nil, perrors.NewProbeError(perrors.KindBadFrame, "legacy response missing §1 marker or field count", nil)
	}

	protocolVersion, _ := strconv.Atoi(fields[1])
	versionName := fields[2]
	motd := fields[3]
	online, _ := strconv.Atoi(fields[4])
	max, _ := strconv.Atoi(fields[5])

	descRaw, _ := json.Marshal(motd)
	return &document.ServerDocument{
		ProtocolID:    protocolVersion,
		VersionName:   versionName,
		MOTDPlain:     motd,
		MOTDRaw:       descRaw,
		PlayersOnline: online,
		PlayersMax:    max,
	}, nil
}
