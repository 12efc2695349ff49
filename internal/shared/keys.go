package shared

import "fmt"

// SettingCacheKey builds redis keys for cached settings under a cache version.
func SettingCacheKey(version int64, key string) string {
	return fmt.Sprintf("settings:%d:%s", version, key)
}

// SettingsVersionKey holds the redis key bumped whenever settings change.
const SettingsVersionKey = "settings:version"
