package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/okian/rankd/internal/config"
	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/ranking"
	"github.com/okian/rankd/pkg/logger"
)

const grenadePrefix = "Grenade_"

type demoOptions struct {
	backend           string
	redisHost         string
	redisPort         int
	connectTimeout    time.Duration
	reconnectInterval time.Duration
	cleanup           bool
	yes               bool
	logLevel          string
}

func newRootCommand() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Populate a leaderboard and print per-attribute rankings",
		Long: "demo writes two scoreboards, one without a prefix and one under " + grenadePrefix +
			", then prints the top players per attribute and reads back single records.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.SetLevelString(opts.logLevel); err != nil {
				return err
			}
			srv, err := opts.server(cmd.Context())
			if err != nil {
				return err
			}
			defer srv.Close()
			return runDemo(cmd.Context(), srv, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.backend, "backend", config.BackendMemory, "store backend: redis or memory")
	flags.StringVar(&opts.redisHost, "redis-host", "127.0.0.1", "redis host")
	flags.IntVar(&opts.redisPort, "redis-port", 6379, "redis port")
	flags.DurationVar(&opts.connectTimeout, "connect-timeout", 10*time.Second, "redis dial/read/write timeout")
	flags.DurationVar(&opts.reconnectInterval, "reconnect-interval", ranking.DefaultReconnectInterval, "wait between reconnect attempts")
	flags.BoolVar(&opts.cleanup, "cleanup", false, "delete every created nickname at the end")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "skip the deletion confirmation prompt")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	return cmd
}

func (o demoOptions) server(ctx context.Context) (*ranking.Server, error) {
	switch o.backend {
	case config.BackendMemory:
		return ranking.NewMemoryServer(ctx, ranking.WithReconnectInterval(o.reconnectInterval)), nil
	case config.BackendRedis:
		return ranking.NewRedisServer(ctx, o.redisHost, o.redisPort, o.connectTimeout, o.reconnectInterval), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

type seed struct {
	nickname string
	values   []int64
}

// rotation yields eleven players whose attributes are a shifted 1..11 sequence,
// so every attribute has a different leader.
func rotation(prefix string) []seed {
	out := make([]seed, 0, 11)
	for i := 0; i < 11; i++ {
		values := make([]int64, stats.NumAttributes)
		for j := range values {
			values[j] = int64((i+j)%11 + 1)
		}
		out = append(out, seed{nickname: fmt.Sprintf("%stest%d", prefix, i), values: values})
	}
	return out
}

func runDemo(ctx context.Context, srv *ranking.Server, in io.Reader, out io.Writer, opts demoOptions) error {
	var nicknames []string

	// The first three players are written with Set. The rest start from an
	// empty record and are grown with Update, since Update never creates one.
	plain := rotation("")
	for i, s := range plain {
		rec := stats.New()
		if i < 3 {
			rec = stats.New(s.values...)
		}
		srv.SetRanking(ctx, s.nickname, rec, "")
		nicknames = append(nicknames, s.nickname)
	}
	srv.AwaitFutures()
	for _, s := range plain[3:] {
		srv.UpdateRanking(ctx, s.nickname, stats.New(s.values...), "")
	}

	grenade := append(rotation("g_"), seed{nickname: "g_test00", values: []int64{1, 1, 1, 1, 1, 1, 1}})
	for _, s := range grenade {
		srv.SetRanking(ctx, s.nickname, stats.New(s.values...), grenadePrefix)
		nicknames = append(nicknames, s.nickname)
	}
	srv.AwaitFutures()

	for _, attr := range stats.Attributes() {
		if err := printTop(ctx, srv, out, 3, attr, ""); err != nil {
			return err
		}
		if err := printTop(ctx, srv, out, 4, attr, grenadePrefix); err != nil {
			return err
		}
	}

	printRecord(ctx, srv, out, "test0", "")
	fmt.Fprintln(out, "explicitly set prefix:")
	printRecord(ctx, srv, out, "g_test00", grenadePrefix)
	fmt.Fprintln(out)
	printRecord(ctx, srv, out, "g_test00", "")

	if !opts.cleanup {
		return nil
	}
	if !opts.yes && !confirm(in, out) {
		fmt.Fprintln(out, "keeping records")
		return nil
	}
	for _, nickname := range nicknames {
		fmt.Fprintf(out, "deleting: %s\n", nickname)
		srv.DeleteRanking(ctx, nickname, "")
		srv.AwaitFutures()
	}
	return nil
}

func printTop(ctx context.Context, srv *ranking.Server, out io.Writer, n int, attr, prefix string) error {
	var ranked []model.Ranked
	if !srv.GetTopRanking(ctx, n, attr, prefix, true, func(r []model.Ranked) { ranked = r }) {
		return fmt.Errorf("top %d by %s%s rejected", n, prefix, attr)
	}
	srv.AwaitFutures()
	for i, r := range ranked {
		v, _ := r.Stats.Get(attr)
		fmt.Fprintf(out, "%s. [%s%s:%d] %s\n", humanize.Ordinal(i+1), prefix, attr, v, r.Nickname)
	}
	fmt.Fprintln(out)
	return nil
}

func printRecord(ctx context.Context, srv *ranking.Server, out io.Writer, nickname, prefix string) {
	rec := stats.Invalid()
	srv.GetRanking(ctx, nickname, prefix, func(s stats.Stats) { rec = s })
	srv.AwaitFutures()
	validity := "invalid"
	if rec.Valid() {
		validity = "valid"
	}
	fmt.Fprintf(out, "%s : %s\n", nickname, rec)
	fmt.Fprintf(out, "is valid: %s\n", validity)
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Please confirm deletion of all the previously created nicks [y/N]: ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
