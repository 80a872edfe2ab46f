package common

// EnvPrefix is the prefix of environment variables read by the config loader.
const EnvPrefix = "GOPHSHARE_"

// SharePathPrefix is the path segment that precedes a short id in share URLs.
const SharePathPrefix = "/s/"
