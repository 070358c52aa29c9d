package event

import (
	"strconv"
	"strings"

	sgo "github.com/gagliardetto/solana-go"
)

// Memo program ids recognized when pulling payloads out of raw
// transaction bodies.
var (
	MemoProgramID       = sgo.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	memoProgramLegacyID = sgo.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// Source bundles the places a memo payload can appear in, depending on
// how the gateway returned the transaction.
type Source struct {
	// Memo is the pre-parsed memo field from a signature listing,
	// usually in the form `[len] payload`.
	Memo *string
	// Tx is the decoded transaction body, if fetched.
	Tx *sgo.Transaction
	// Logs are the execution log messages from the transaction meta.
	Logs []string
}

type extractor func(Source) ([]byte, bool)

// Ordered by reliability. First match wins; adding a new historical
// shape means appending one more extractor.
var extractors = []extractor{
	fromMemoField,
	fromInstruction,
	fromLogs,
}

// ExtractMemo returns the raw memo payload for a transaction, trying
// each known location in order.
func ExtractMemo(src Source) ([]byte, bool) {
	for _, ex := range extractors {
		if data, ok := ex(src); ok {
			return data, true
		}
	}
	return nil, false
}

// DecodeSource is ExtractMemo followed by Decode.
func DecodeSource(src Source) Event {
	data, ok := ExtractMemo(src)
	if !ok {
		return nil
	}
	return Decode(data)
}

func fromMemoField(src Source) ([]byte, bool) {
	if src.Memo == nil {
		return nil, false
	}
	s := *src.Memo
	// gateways prefix the listing memo with a byte-length marker
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "] "); 0 < i {
			s = s[i+2:]
		}
	}
	if len(s) == 0 {
		return nil, false
	}
	return []byte(s), true
}

func fromInstruction(src Source) ([]byte, bool) {
	if src.Tx == nil {
		return nil, false
	}
	msg := src.Tx.Message
	for _, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= len(msg.AccountKeys) {
			continue
		}
		program := msg.AccountKeys[ix.ProgramIDIndex]
		if !program.Equals(MemoProgramID) && !program.Equals(memoProgramLegacyID) {
			continue
		}
		if len(ix.Data) == 0 {
			continue
		}
		return []byte(ix.Data), true
	}
	return nil, false
}

const logMemoPrefix = "Program log: Memo"

func fromLogs(src Source) ([]byte, bool) {
	for _, line := range src.Logs {
		if !strings.HasPrefix(line, logMemoPrefix) {
			continue
		}
		start := strings.Index(line, `"`)
		if start < 0 {
			continue
		}
		quoted := line[start:]
		s, err := strconv.Unquote(quoted)
		if err != nil {
			continue
		}
		if len(s) == 0 {
			continue
		}
		return []byte(s), true
	}
	return nil, false
}
