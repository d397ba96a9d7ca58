/*
Package oidc implements the relying-party side of a 3-legged OIDC
authorization code flow for a server-rendered web application.

Primary types provided by the package:

  - Config: the configuration for the flow (client id/secret, issuer,
    redirect URL, post-logout redirect URL, additional scopes, supported
    signing algorithms, optional provider CA).

  - Provider: integration with a single OIDC provider. It generates auth
    URLs, exchanges authorization codes for tokens, verifies id_tokens,
    makes userinfo requests and builds provider logout URLs.

  - Request: one in-flight login attempt. It carries the state id and nonce
    that tie the redirect to the provider back to the callback, plus the
    application URL the user should land on once the flow completes. All
    Requests expire.

  - Token: the result of a successful code exchange: an id_token, an
    access_token and, depending on the provider, a refresh_token. The token
    types redact themselves when printed or marshaled.

TestProvider runs a local OIDC provider for tests, so the whole flow can be
exercised without a network dependency.
*/
package oidc
