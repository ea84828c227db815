package model_test

import (
	"testing"

	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/smartystreets/goconvey/convey"
)

func TestIntent(t *testing.T) {
	convey.Convey("Given an Intent struct", t, func() {
		convey.Convey("When creating an update intent", func() {
			in := model.Intent{
				Action:   model.ActionUpdate,
				Nickname: "Sebastian",
				Stats:    stats.New(1, 1, 3),
				Prefix:   "Grenade_",
			}

			convey.Convey("Then it should carry the snapshot", func() {
				convey.So(in.Action, convey.ShouldEqual, model.ActionUpdate)
				convey.So(string(in.Action), convey.ShouldEqual, "update")
				convey.So(in.Stats.MustGet(stats.Score), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When creating a delete intent", func() {
			in := model.Intent{Action: model.ActionDelete, Nickname: "Chris"}

			convey.Convey("Then it should have an invalid snapshot", func() {
				convey.So(in.Stats.Valid(), convey.ShouldBeFalse)
				convey.So(in.Prefix, convey.ShouldEqual, "")
			})
		})
	})
}
