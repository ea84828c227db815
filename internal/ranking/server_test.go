package ranking_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/rankd/internal/adapters/store"
	"github.com/okian/rankd/internal/adapters/store/memstore"
	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/ranking"
	logging "github.com/okian/rankd/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const grenade = "Grenade_"

func newServer(opts ...memstore.Option) (*ranking.Server, *memstore.Store) {
	_ = logging.Init()
	mem := memstore.New(opts...)
	srv := ranking.New(context.Background(), mem,
		ranking.WithReconnectInterval(10*time.Millisecond),
		ranking.WithLogger(logging.Nop()),
	)
	return srv, mem
}

func get(srv *ranking.Server, nickname, prefix string) stats.Stats {
	var out stats.Stats
	convey.So(srv.GetRanking(context.Background(), nickname, prefix, func(s stats.Stats) { out = s }), convey.ShouldBeTrue)
	srv.AwaitFutures()
	return out
}

func top(srv *ranking.Server, n int, attribute, prefix string, biggestFirst bool) []model.Ranked {
	var out []model.Ranked
	ok := srv.GetTopRanking(context.Background(), n, attribute, prefix, biggestFirst, func(r []model.Ranked) { out = r })
	convey.So(ok, convey.ShouldBeTrue)
	srv.AwaitFutures()
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestSetUpdateGet(t *testing.T) {
	convey.Convey("Given a connected ranking server", t, func() {
		ctx := context.Background()
		srv, _ := newServer()
		defer srv.Close()

		convey.So(srv.Stats().State, convey.ShouldEqual, "connected")

		convey.Convey("When a record is set and then updated", func() {
			convey.So(srv.SetRanking(ctx, "p1", stats.New(1, 0, 5), ""), convey.ShouldBeTrue)
			srv.AwaitFutures()
			convey.So(srv.UpdateRanking(ctx, "p1", stats.New(1, 1, 3), ""), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then Get should return the field-wise sum", func() {
				convey.So(get(srv, "p1", "").Equal(stats.New(2, 1, 8)), convey.ShouldBeTrue)
			})

			convey.Convey("And the score index should carry the merged value", func() {
				ranked := top(srv, 1, stats.Score, "", true)
				convey.So(ranked, convey.ShouldHaveLength, 1)
				convey.So(ranked[0].Nickname, convey.ShouldEqual, "p1")
				convey.So(ranked[0].Stats.MustGet(stats.Score), convey.ShouldEqual, 8)
			})

			convey.Convey("And nothing should be queued for replay", func() {
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
				convey.So(srv.Stats().InFlight, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When records are set under two prefixes", func() {
			srv.SetRanking(ctx, "Sebastian", stats.New(4, 2, 10, 1, 0, 3, 0), "")
			srv.SetRanking(ctx, "Sebastian", stats.New(7, 1, 2), grenade)
			srv.AwaitFutures()

			convey.Convey("Then each prefix should read back its own record", func() {
				convey.So(get(srv, "Sebastian", "").Equal(stats.New(4, 2, 10, 1, 0, 3, 0)), convey.ShouldBeTrue)
				convey.So(get(srv, "Sebastian", grenade).Equal(stats.New(7, 1, 2)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a set overwrites an existing record", func() {
			srv.SetRanking(ctx, "p1", stats.New(9, 9, 9), "")
			srv.AwaitFutures()
			srv.SetRanking(ctx, "p1", stats.New(1), "")
			srv.AwaitFutures()

			convey.Convey("Then no merge should happen", func() {
				convey.So(get(srv, "p1", "").Equal(stats.New(1)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When reading a nickname that was never written", func() {
			rec := get(srv, "nobody", "")

			convey.Convey("Then the record should be invalid", func() {
				convey.So(rec.Valid(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When reading a prefix the nickname has no fields for", func() {
			srv.SetRanking(ctx, "p1", stats.New(1), "")
			srv.AwaitFutures()

			convey.So(get(srv, "p1", grenade).Valid(), convey.ShouldBeFalse)
		})

		convey.Convey("When updating a nickname that does not exist", func() {
			convey.So(srv.UpdateRanking(ctx, "ghost", stats.New(1), ""), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then no record should be created", func() {
				convey.So(get(srv, "ghost", "").Valid(), convey.ShouldBeFalse)
			})

			convey.Convey("And the update should wait in the backlog", func() {
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 1)
				convey.So(srv.Stats().State, convey.ShouldEqual, "connected")
			})
		})
	})
}

func TestTopRanking(t *testing.T) {
	convey.Convey("Given a server holding several players", t, func() {
		ctx := context.Background()
		srv, _ := newServer()
		defer srv.Close()

		scores := map[string]int64{"Sebastian": 96, "Chris": 3, "Lukas": 42, "Marie": 42, "Tom": 17, "Anna": 64}
		for nick, score := range scores {
			srv.SetRanking(ctx, nick, stats.New(0, 0, score), "")
			srv.SetRanking(ctx, nick, stats.New(score%7), grenade)
		}
		srv.AwaitFutures()

		convey.Convey("When asking for the biggest scores", func() {
			ranked := top(srv, 4, stats.Score, "", true)

			convey.Convey("Then values should be non-increasing and hydrated", func() {
				convey.So(ranked, convey.ShouldHaveLength, 4)
				convey.So(ranked[0].Nickname, convey.ShouldEqual, "Sebastian")
				for i := 1; i < len(ranked); i++ {
					convey.So(ranked[i].Stats.MustGet(stats.Score), convey.ShouldBeLessThanOrEqualTo, ranked[i-1].Stats.MustGet(stats.Score))
				}
				for _, r := range ranked {
					convey.So(r.Stats.MustGet(stats.Score), convey.ShouldEqual, scores[r.Nickname])
				}
			})

			convey.Convey("And ties should be ordered deterministically", func() {
				convey.So(ranked[2].Nickname, convey.ShouldEqual, "Marie")
				convey.So(ranked[3].Nickname, convey.ShouldEqual, "Lukas")
			})
		})

		convey.Convey("When asking for the smallest scores", func() {
			ranked := top(srv, 3, stats.Score, "", false)

			convey.Convey("Then values should be non-decreasing", func() {
				convey.So(ranked, convey.ShouldHaveLength, 3)
				convey.So(ranked[0].Nickname, convey.ShouldEqual, "Chris")
				for i := 1; i < len(ranked); i++ {
					convey.So(ranked[i].Stats.MustGet(stats.Score), convey.ShouldBeGreaterThanOrEqualTo, ranked[i-1].Stats.MustGet(stats.Score))
				}
			})
		})

		convey.Convey("When asking for more entries than exist", func() {
			ranked := top(srv, 100, stats.Kills, grenade, true)

			convey.Convey("Then every player of the prefix should be returned", func() {
				convey.So(ranked, convey.ShouldHaveLength, len(scores))
				for _, r := range ranked {
					convey.So(r.Stats.MustGet(stats.Kills), convey.ShouldEqual, scores[r.Nickname]%7)
				}
			})
		})

		convey.Convey("When the index does not exist", func() {
			ranked := top(srv, 3, stats.Score, "Rocket_", true)

			convey.Convey("Then the result should be empty", func() {
				convey.So(ranked, convey.ShouldNotBeNil)
				convey.So(ranked, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the attribute is unknown", func() {
			ranked := top(srv, 3, "Assists", "", true)

			convey.Convey("Then the callback should still receive an empty result", func() {
				convey.So(ranked, convey.ShouldNotBeNil)
				convey.So(ranked, convey.ShouldBeEmpty)
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestDeleteRanking(t *testing.T) {
	convey.Convey("Given a player with records under two prefixes", t, func() {
		ctx := context.Background()
		srv, mem := newServer()
		defer srv.Close()

		srv.SetRanking(ctx, "Chris", stats.New(1, 2, 3), "")
		srv.SetRanking(ctx, "Chris", stats.New(4, 5, 6), grenade)
		srv.AwaitFutures()

		convey.Convey("When deleting with a prefix", func() {
			convey.So(srv.DeleteRanking(ctx, "Chris", grenade), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then only the prefixed fields and indices should go", func() {
				convey.So(get(srv, "Chris", grenade).Valid(), convey.ShouldBeFalse)
				convey.So(get(srv, "Chris", "").Equal(stats.New(1, 2, 3)), convey.ShouldBeTrue)

				_, inGrenade := mem.Score(grenade+stats.Kills, "Chris")
				_, inPlain := mem.Score(stats.Kills, "Chris")
				convey.So(inGrenade, convey.ShouldBeFalse)
				convey.So(inPlain, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When deleting without a prefix", func() {
			convey.So(srv.DeleteRanking(ctx, "Chris", ""), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then the whole record and every index entry should go", func() {
				convey.So(get(srv, "Chris", "").Valid(), convey.ShouldBeFalse)
				convey.So(get(srv, "Chris", grenade).Valid(), convey.ShouldBeFalse)
				convey.So(mem.Len(), convey.ShouldEqual, 0)
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When deleting a prefix with no matching fields", func() {
			srv.DeleteRanking(ctx, "Chris", "Rocket_")
			srv.AwaitFutures()

			convey.Convey("Then nothing should change or be queued", func() {
				convey.So(get(srv, "Chris", "").Valid(), convey.ShouldBeTrue)
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When deleting a nickname that does not exist", func() {
			srv.DeleteRanking(ctx, "nobody", "")
			srv.AwaitFutures()

			convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
		})

		convey.Convey("When the nickname names an index rather than a record", func() {
			convey.So(srv.DeleteRanking(ctx, grenade+stats.Kills, ""), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then the delete should be queued while the session stays up", func() {
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 1)
				convey.So(srv.Stats().State, convey.ShouldEqual, "connected")

				_, indexed := mem.Score(grenade+stats.Kills, "Chris")
				convey.So(indexed, convey.ShouldBeTrue)
			})
		})
	})
}

// zeroDeleteClient reports that deletes removed nothing while still
// applying them.
type zeroDeleteClient struct {
	*memstore.Store
}

func (c zeroDeleteClient) Pipelined(ctx context.Context, fn func(store.Batch)) error {
	return c.Store.Pipelined(ctx, func(b store.Batch) { fn(zeroDeleteBatch{b}) })
}

type zeroDeleteBatch struct {
	store.Batch
}

func (b zeroDeleteBatch) Del(key string) *store.Count {
	b.Batch.Del(key)
	return &store.Count{}
}

func (b zeroDeleteBatch) HDel(key string, fields ...string) *store.Count {
	b.Batch.HDel(key, fields...)
	return &store.Count{}
}

func TestDeleteNothingRemoved(t *testing.T) {
	convey.Convey("Given a store whose deletes report a zero count", t, func() {
		ctx := context.Background()
		mem := memstore.New()
		srv := ranking.New(ctx, zeroDeleteClient{mem},
			ranking.WithReconnectInterval(10*time.Millisecond),
			ranking.WithLogger(logging.Nop()),
		)
		defer srv.Close()

		srv.SetRanking(ctx, "Chris", stats.New(1, 2, 3), grenade)
		srv.AwaitFutures()

		convey.Convey("When the record is deleted", func() {
			convey.So(srv.DeleteRanking(ctx, "Chris", grenade), convey.ShouldBeTrue)
			srv.AwaitFutures()

			convey.Convey("Then the delete should be queued without reconnecting", func() {
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 1)
				convey.So(srv.Stats().State, convey.ShouldEqual, "connected")
			})
		})
	})
}

func TestValidation(t *testing.T) {
	convey.Convey("Given a connected ranking server", t, func() {
		ctx := context.Background()
		srv, _ := newServer()
		defer srv.Close()
		noop := func(stats.Stats) {}

		convey.Convey("When nicknames collide with index names", func() {
			convey.Convey("Then every write should be rejected without a task", func() {
				convey.So(srv.SetRanking(ctx, stats.Kills, stats.New(1), ""), convey.ShouldBeFalse)
				convey.So(srv.UpdateRanking(ctx, stats.Score, stats.New(1), grenade), convey.ShouldBeFalse)
				convey.So(srv.UpdateRanking(ctx, grenade+stats.Score, stats.New(1), grenade), convey.ShouldBeFalse)
				convey.So(srv.DeleteRanking(ctx, grenade+stats.Deaths, grenade), convey.ShouldBeFalse)
				convey.So(srv.GetRanking(ctx, stats.Wins, "", noop), convey.ShouldBeFalse)
				convey.So(srv.Stats().InFlight, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When inputs are missing or malformed", func() {
			convey.So(srv.SetRanking(ctx, "", stats.New(1), ""), convey.ShouldBeFalse)
			convey.So(srv.SetRanking(ctx, "p1", stats.Invalid(), ""), convey.ShouldBeFalse)
			convey.So(srv.GetRanking(ctx, "p1", "", nil), convey.ShouldBeFalse)
			convey.So(srv.GetTopRanking(ctx, 3, stats.Score, "", true, nil), convey.ShouldBeFalse)
			convey.So(srv.GetTopRanking(ctx, 0, stats.Score, "", true, func([]model.Ranked) {}), convey.ShouldBeFalse)
			convey.So(srv.Stats().InFlight, convey.ShouldEqual, 0)
		})

		convey.Convey("When a callback panics", func() {
			ok := srv.GetRanking(ctx, "p1", "", func(stats.Stats) { panic("callback") })

			convey.Convey("Then the panic should stay inside the task", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(srv.AwaitFutures, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the server is closed", func() {
			convey.So(srv.Close(), convey.ShouldBeNil)

			convey.Convey("Then later calls should be rejected", func() {
				convey.So(srv.SetRanking(ctx, "p1", stats.New(1), ""), convey.ShouldBeFalse)
				convey.So(srv.Stats().Closed, convey.ShouldBeTrue)
				convey.So(srv.Close(), convey.ShouldBeNil)
			})
		})
	})
}

func TestDisabledServer(t *testing.T) {
	convey.Convey("Given a disabled server", t, func() {
		ctx := context.Background()
		srv := ranking.NewDisabled()
		called := false

		convey.Convey("Then every operation should be rejected", func() {
			convey.So(srv.SetRanking(ctx, "p1", stats.New(1), ""), convey.ShouldBeFalse)
			convey.So(srv.UpdateRanking(ctx, "p1", stats.New(1), ""), convey.ShouldBeFalse)
			convey.So(srv.DeleteRanking(ctx, "p1", ""), convey.ShouldBeFalse)
			convey.So(srv.GetRanking(ctx, "p1", "", func(stats.Stats) { called = true }), convey.ShouldBeFalse)
			convey.So(srv.GetTopRanking(ctx, 1, stats.Score, "", true, func([]model.Ranked) { called = true }), convey.ShouldBeFalse)
			srv.AwaitFutures()
			convey.So(called, convey.ShouldBeFalse)
			convey.So(srv.Stats().Disabled, convey.ShouldBeTrue)
			convey.So(srv.Close(), convey.ShouldBeNil)
		})
	})
}

func TestDisconnectRecovery(t *testing.T) {
	convey.Convey("Given a server whose store goes away", t, func() {
		ctx := context.Background()
		srv, mem := newServer()
		defer srv.Close()

		srv.SetRanking(ctx, "A", stats.New(), "")
		srv.AwaitFutures()
		mem.SetAvailable(false)

		convey.Convey("When an update is issued during the outage", func() {
			convey.So(srv.UpdateRanking(ctx, "A", stats.New(3, 1, 4), ""), convey.ShouldBeTrue)

			convey.Convey("Then it should be queued and the reconnect loop started", func() {
				convey.So(eventually(func() bool { return srv.Stats().Backlog == 1 }), convey.ShouldBeTrue)
				convey.So(srv.Stats().State, convey.ShouldEqual, "reconnecting")
			})

			convey.Convey("And once the store is back the update should land", func() {
				convey.So(eventually(func() bool { return srv.Stats().Backlog == 1 }), convey.ShouldBeTrue)
				mem.SetAvailable(true)
				srv.AwaitFutures()

				convey.So(srv.Stats().State, convey.ShouldEqual, "connected")
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
				convey.So(get(srv, "A", "").Equal(stats.New(3, 1, 4)), convey.ShouldBeTrue)

				ranked := top(srv, 1, stats.Score, "", true)
				convey.So(ranked, convey.ShouldHaveLength, 1)
				convey.So(ranked[0].Stats.MustGet(stats.Score), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When several writes fail during the outage", func() {
			for i := 0; i < 5; i++ {
				srv.SetRanking(ctx, fmt.Sprintf("p%d", i), stats.New(int64(i)), "")
			}
			srv.DeleteRanking(ctx, "A", "")
			convey.So(eventually(func() bool { return srv.Stats().Backlog == 6 }), convey.ShouldBeTrue)

			mem.SetAvailable(true)
			srv.AwaitFutures()

			convey.Convey("Then every one of them should be replayed", func() {
				convey.So(get(srv, "A", "").Valid(), convey.ShouldBeFalse)
				ranked := top(srv, 10, stats.Kills, "", true)
				convey.So(ranked, convey.ShouldHaveLength, 5)
				convey.So(ranked[0].Nickname, convey.ShouldEqual, "p4")
			})
		})

		convey.Convey("When a read is issued during the outage", func() {
			result := make(chan stats.Stats, 1)
			convey.So(srv.GetRanking(ctx, "A", "", func(s stats.Stats) { result <- s }), convey.ShouldBeTrue)
			rec := <-result
			mem.SetAvailable(true)
			srv.AwaitFutures()

			convey.Convey("Then it should get an invalid record and queue nothing", func() {
				convey.So(rec.Valid(), convey.ShouldBeFalse)
				convey.So(srv.Stats().Backlog, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestStartDisconnected(t *testing.T) {
	convey.Convey("Given a server created while the store is down", t, func() {
		ctx := context.Background()
		srv, mem := newServer(memstore.WithUnavailable())
		defer srv.Close()

		convey.So(srv.Stats().State, convey.ShouldEqual, "reconnecting")

		convey.Convey("When a write is issued before the store comes up", func() {
			srv.SetRanking(ctx, "Lukas", stats.New(5, 5, 5), "")
			convey.So(eventually(func() bool { return srv.Stats().Backlog == 1 }), convey.ShouldBeTrue)
			mem.SetAvailable(true)
			srv.AwaitFutures()

			convey.Convey("Then the write should be delivered after connecting", func() {
				convey.So(srv.Stats().State, convey.ShouldEqual, "connected")
				convey.So(get(srv, "Lukas", "").Equal(stats.New(5, 5, 5)), convey.ShouldBeTrue)
			})
		})
	})
}

func TestCloseDuringOutage(t *testing.T) {
	convey.Convey("Given a server with a long reconnect interval and a dead store", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		mem := memstore.New(memstore.WithUnavailable())
		srv := ranking.New(ctx, mem, ranking.WithReconnectInterval(time.Hour), ranking.WithLogger(logging.Nop()))

		srv.SetRanking(ctx, "Tom", stats.New(1), "")
		convey.So(eventually(func() bool { return srv.Stats().Backlog == 1 }), convey.ShouldBeTrue)

		convey.Convey("When the server is closed", func() {
			done := make(chan error, 1)
			go func() { done <- srv.Close() }()

			convey.Convey("Then the loop should stop and queued writes be dropped", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(2 * time.Second):
					convey.So(false, convey.ShouldBeTrue) // close did not return
				}
				st := srv.Stats()
				convey.So(st.Closed, convey.ShouldBeTrue)
				convey.So(st.State, convey.ShouldEqual, "disconnected")
				convey.So(st.Backlog, convey.ShouldEqual, 0)
				convey.So(st.InFlight, convey.ShouldEqual, 0)
			})
		})
	})
}
