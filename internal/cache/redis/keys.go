package redis

import "strconv"

// keyPrefix namespaces every key this package writes.
const keyPrefix = "epochkeeper:"

const (
	epochsKey    = keyPrefix + "epochs"
	statusStream = keyPrefix + "status:stream"
)

func epochField(epoch uint64) string {
	return strconv.FormatUint(epoch, 10)
}
