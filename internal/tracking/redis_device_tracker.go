package tracking

import (
	"context"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/rueidis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recordScript stores ARGV[1] under KEYS[1] with a TTL of ARGV[3] seconds
// unless the stored record already carries a version >= ARGV[2].
var recordScript = rueidis.NewLuaScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, stored = pcall(cjson.decode, current)
	if ok and type(stored) == 'table' then
		local version = tonumber(stored['version'])
		if version and version >= tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
return 1
`)

// RedisDeviceTracker shares records between instances. Every record is a
// JSON string stored with its own expiry.
type RedisDeviceTracker struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeviceTracker(client rueidis.Client, keyPrefix string, ttl time.Duration) *RedisDeviceTracker {
	if ttl < time.Second {
		ttl = DefaultTTL
	}
	return &RedisDeviceTracker{
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
	}
}

func (r *RedisDeviceTracker) key(taskID string) string {
	return r.prefix + taskID
}

func (r *RedisDeviceTracker) Lookup(ctx context.Context, taskID string) (DeviceWriteRecord, bool, error) {
	cmd := r.client.B().Get().Key(r.key(taskID)).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return DeviceWriteRecord{}, false, nil
		}
		return DeviceWriteRecord{}, false, err
	}

	var record DeviceWriteRecord
	if err := json.Unmarshal(data, &record); err != nil {
		_ = r.Forget(ctx, taskID)
		return DeviceWriteRecord{}, false, nil
	}
	return record, true, nil
}

// Record keeps the entry with the highest version. The compare and the write
// run as one script so concurrent instances cannot move a record backwards.
func (r *RedisDeviceTracker) Record(ctx context.Context, taskID string, record DeviceWriteRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return recordScript.Exec(ctx, r.client,
		[]string{r.key(taskID)},
		[]string{string(data), strconv.FormatUint(uint64(record.Version), 10), strconv.FormatInt(int64(r.ttl/time.Second), 10)},
	).Error()
}

func (r *RedisDeviceTracker) Forget(ctx context.Context, taskID string) error {
	cmd := r.client.B().Del().Key(r.key(taskID)).Build()
	return r.client.Do(ctx, cmd).Error()
}
