// Package channel abstracts the realtime messaging backend.
//
// Two implementations exist:
//
//   - streamchat: a REST client for the Stream Chat server API
//   - matrix: a Matrix appservice client that mirrors users as ghosts
//
// The relay treats the backend as the authority on who is registered:
// FindUser is checked before the local store on every chat request, so the
// two stay consistent even if one is rebuilt.
package channel
