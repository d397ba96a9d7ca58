// session holds a logged-in user's server-side state and the signed cookie
// that references it. A Session carries the user's provider tokens and
// profile claims; the browser only ever holds an HS256-signed JWT with the
// session id, so tokens never leave the server.
package session
