package event

// Wire version of the memo payload format.
const Version = 1

const (
	KindPost     = "post"
	KindLike     = "like"
	KindManifest = "manifest"
)

// Field caps. Payloads must stay under the ledger's per-instruction
// size limit, so every free-form field is truncated on encode.
const (
	MaxLines      = 6
	MaxLineLen    = 140
	MaxKeyLen     = 64
	MaxRegistries = 8
)

// Event is one application-level record embedded in a transaction memo.
type Event interface {
	Kind() string
}

// Publish announces a new piece of content.
type Publish struct {
	ContentKey string
	Lines      []string
	Watermark  string
	Creator    string
}

func (Publish) Kind() string { return KindPost }

// Like records a like or superlike, optionally carrying a tip amount
// in base units (lamports).
type Like struct {
	ContentID string
	Liker     string
	Amount    uint64
	Superlike bool
}

func (Like) Kind() string { return KindLike }

// Manifest is an owner-signed listing of the registry accounts that
// currently anchor this application's events.
type Manifest struct {
	Tag        string
	Owner      string
	Registries []string
	UpdatedAt  int64
}

func (Manifest) Kind() string { return KindManifest }
