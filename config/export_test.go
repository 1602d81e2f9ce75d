package config

// ResolveToken exposes resolveToken for tests.
var ResolveToken = resolveToken
