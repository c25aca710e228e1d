package realmcache

import "encoding/json"

// purgeMessage is the wire shape published to the invalidation channel.
type purgeMessage struct {
	Usernames []string `json:"usernames"`
}

func encodePurgeMessage(usernames []string) ([]byte, error) {
	return json.Marshal(purgeMessage{Usernames: usernames})
}

// decodePurgeMessage is used by subscribers (debug tooling, tests) that want
// to read back what was published.
func decodePurgeMessage(payload []byte) ([]string, error) {
	var msg purgeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return msg.Usernames, nil
}

func tombstoneKey(username string) string {
	return "realm-cache:tombstone:" + username
}
