package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
)

// newTestRedis поднимает miniredis и возвращает подключённый клиент
// вместе с сервером (для имитации отказов). Оба закрываются при
// завершении теста.
func newTestRedis(t *testing.T) (goredis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}
