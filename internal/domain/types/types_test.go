package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/rankd/internal/domain/stats"
	types "github.com/okian/rankd/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		Convey("When creating a new entry", func() {
			entry := types.Entry{
				Rank:     1,
				Nickname: "Sebastian",
				Value:    96,
				Stats:    stats.New(96),
			}

			Convey("Then it should have the correct values", func() {
				So(entry.Rank, ShouldEqual, 1)
				So(entry.Nickname, ShouldEqual, "Sebastian")
				So(entry.Value, ShouldEqual, 96)
			})
		})

		Convey("When encoding an entry", func() {
			b, err := json.Marshal(types.Entry{Rank: 2, Nickname: "Chris", Value: 3, Stats: stats.New(3)})

			Convey("Then the record should be nested under stats", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"nickname":"Chris"`)
				So(string(b), ShouldContainSubstring, `"stats":{"Kills":3,`)
			})
		})

		Convey("When encoding an entry with an invalid record", func() {
			b, err := json.Marshal(types.Entry{Rank: 1, Nickname: "ghost"})
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"stats":null`)
		})
	})
}
