// Package bridge drives a remote browser's history over a WebSocket.
//
// The browser connects, announces its location with a hello message and
// then mirrors every command the server sends (push, replace, go, hash).
// Back/forward presses and hash changes in the browser come back as
// popstate and hashchange events; link clicks the page wants routed come
// back as navigate requests (see Remote.OnNavigate). Each connection is exposed as a Remote,
// which implements history.Platform, so the usual Browser and Hash
// histories (and a navigation engine on top of them) run server side:
//
//	h := &bridge.Handler{
//		OnConnect: func(r *bridge.Remote) {
//			hist, _ := history.NewBrowser(r)
//			engine, _ := navigation.NewEngine(navigation.WithHistory(hist))
//			go engine.Start(context.Background())
//		},
//	}
//	mux.Handle("/ws", h)
//
// Messages are JSON objects; see Message.
package bridge
