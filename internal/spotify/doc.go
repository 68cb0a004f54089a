// package spotify implements the remote playback backend.
//
// Three layers: [Client] is a rate-limited REST client over the Web API
// player endpoints; [Device] is the connected-device surface (the production
// implementation polls the API at its own cadence and pushes ready,
// not-ready, and state-changed events; tests inject a fake); [Backend] is
// the state machine the playback controller talks to.
//
// The backend moves Uninitialized → Connecting → Ready ⇄ NotReady. There is
// no teardown state; a session lives until the process exits.
package spotify
