package bridge

// Op names a message.
type Op string

// Server to browser.
const (
	OpPush    Op = "push"
	OpReplace Op = "replace"
	OpGo      Op = "go"
	OpHash    Op = "hash"
)

// Browser to server.
const (
	OpHello      Op = "hello"
	OpPopState   Op = "popstate"
	OpHashChange Op = "hashchange"

	// OpNavigate asks the server to navigate, e.g. for a link click.
	OpNavigate Op = "navigate"
)

// Message is the single wire type. Fields unused by an op are omitted.
type Message struct {
	Op Op `json:"op"`

	// URL is the path, query and fragment.
	URL string `json:"url,omitempty"`

	State map[string]any `json:"state,omitempty"`

	// Delta is set for OpGo.
	Delta int `json:"delta,omitempty"`

	// Fragment is set for OpHash.
	Fragment string `json:"fragment,omitempty"`

	// Replace is set for OpNavigate to request a replace.
	Replace bool `json:"replace,omitempty"`

	// Native is sent with OpHello: whether the browser has a history API.
	Native bool `json:"native,omitempty"`
}
