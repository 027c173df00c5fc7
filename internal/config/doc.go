// Package config provides configuration parsing for the waypoint CLI.
//
// The configuration is stored in waypoint.yaml, waypoint.toml or
// waypoint.json; the format follows the file extension. Every field is
// optional and durations are Go duration strings.
//
// # Configuration File Structure
//
//	history:
//	  mode: browser        # memory, browser or hash
//	  base: /app
//	guards:
//	  timeout: 5s
//	  parallel: false
//	navigation:
//	  maxRedirects: 10
//	  redirectWindow: 10
//	  redirectIdle: 1s
//	server:
//	  addr: localhost:8080
//	  bridgePath: /ws
//	state:
//	  store: bolt:waypoint.db
//	  ttl: 24h
//	routes:
//	  - path: /
//	    name: home
//	  - path: /users/:id
//	    name: user
//	    params: {id: int}
//	    children:
//	      - path: posts
//	  - path: /old
//	    redirect: /
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.EngineOptions()
//	engine, err := navigation.NewEngine(append(opts, navigation.WithHistory(h))...)
package config
