package event

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// wire is the compact JSON form shared by all event kinds. Field names
// are kept short to leave room for content under the memo size cap.
type wire struct {
	Version    int      `json:"v"`
	Kind       string   `json:"kind"`
	Key        string   `json:"key,omitempty"`
	Lines      []string `json:"lines,omitempty"`
	Watermark  string   `json:"wm,omitempty"`
	By         string   `json:"by,omitempty"`
	ContentID  string   `json:"id,omitempty"`
	Amount     uint64   `json:"amt,omitempty"`
	Superlike  bool     `json:"super,omitempty"`
	Tag        string   `json:"tag,omitempty"`
	Owner      string   `json:"owner,omitempty"`
	Registries []string `json:"reg,omitempty"`
	UpdatedAt  int64    `json:"ts,omitempty"`
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Encode serializes an event to its memo payload, truncating oversized
// fields rather than failing.
func Encode(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("blank event")
	}
	w := wire{Version: Version, Kind: ev.Kind()}
	switch x := ev.(type) {
	case Publish:
		w.Key = truncate(x.ContentKey, MaxKeyLen)
		lines := x.Lines
		if MaxLines < len(lines) {
			lines = lines[:MaxLines]
		}
		w.Lines = make([]string, len(lines))
		for i, l := range lines {
			w.Lines[i] = truncate(l, MaxLineLen)
		}
		w.Watermark = truncate(x.Watermark, MaxKeyLen)
		w.By = x.Creator
	case Like:
		w.ContentID = truncate(x.ContentID, MaxKeyLen)
		w.By = x.Liker
		w.Amount = x.Amount
		w.Superlike = x.Superlike
	case Manifest:
		w.Tag = truncate(x.Tag, MaxKeyLen)
		w.Owner = x.Owner
		regs := x.Registries
		if MaxRegistries < len(regs) {
			regs = regs[:MaxRegistries]
		}
		w.Registries = regs
		w.UpdatedAt = x.UpdatedAt
	default:
		return nil, errors.New("unknown event kind")
	}
	return json.Marshal(&w)
}

// Decode parses a memo payload back into an event. It never fails
// loudly: any malformed, oversized or unrecognized payload yields nil.
// The payload is tried as-is first, then base64-decoded, since some
// gateways hand memo bodies back re-encoded.
func Decode(data []byte) Event {
	if len(data) == 0 {
		return nil
	}
	if ev := decodeJSON(data); ev != nil {
		return ev
	}
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil
	}
	return decodeJSON(raw)
}

func decodeJSON(data []byte) Event {
	if !gjson.ValidBytes(data) {
		return nil
	}
	if gjson.GetBytes(data, "v").Int() != Version {
		return nil
	}
	kind := gjson.GetBytes(data, "kind").String()
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	switch kind {
	case KindPost:
		return decodePost(w)
	case KindLike:
		return decodeLike(w)
	case KindManifest:
		return decodeManifest(w)
	}
	return nil
}

func decodePost(w wire) Event {
	if len(w.Key) == 0 || MaxKeyLen < len([]rune(w.Key)) {
		return nil
	}
	if len(w.By) == 0 || MaxLines < len(w.Lines) {
		return nil
	}
	for _, l := range w.Lines {
		if MaxLineLen < len([]rune(l)) {
			return nil
		}
	}
	if MaxKeyLen < len([]rune(w.Watermark)) {
		return nil
	}
	return Publish{
		ContentKey: w.Key,
		Lines:      w.Lines,
		Watermark:  w.Watermark,
		Creator:    w.By,
	}
}

func decodeLike(w wire) Event {
	if len(w.ContentID) == 0 || MaxKeyLen < len([]rune(w.ContentID)) {
		return nil
	}
	if len(w.By) == 0 {
		return nil
	}
	return Like{
		ContentID: w.ContentID,
		Liker:     w.By,
		Amount:    w.Amount,
		Superlike: w.Superlike,
	}
}

func decodeManifest(w wire) Event {
	if len(w.Tag) == 0 || MaxKeyLen < len([]rune(w.Tag)) {
		return nil
	}
	if len(w.Owner) == 0 || len(w.Registries) == 0 {
		return nil
	}
	if MaxRegistries < len(w.Registries) {
		return nil
	}
	return Manifest{
		Tag:        w.Tag,
		Owner:      w.Owner,
		Registries: w.Registries,
		UpdatedAt:  w.UpdatedAt,
	}
}
