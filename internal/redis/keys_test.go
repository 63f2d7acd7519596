package redis

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKeys(t *testing.T) {
	Convey("Given a key builder", t, func() {
		k := keys{prefix: "arcade"}

		Convey("Blobs keep the store key verbatim", func() {
			So(k.blob("pp_scores"), ShouldEqual, "arcade:blob:pp_scores")
			So(k.blob("pp_scores:p1"), ShouldEqual, "arcade:blob:pp_scores:p1")
		})

		Convey("Boards and player info are namespaced apart", func() {
			So(k.board("snake"), ShouldEqual, "arcade:leaderboard:snake")
			So(k.playerInfo("p1"), ShouldEqual, "arcade:player:p1:info")
			So(k.board("p1"), ShouldNotEqual, k.playerInfo("p1"))
		})
	})
}
