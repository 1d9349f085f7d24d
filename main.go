package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/123pan/release-feed/internal/config"
	"github.com/123pan/release-feed/internal/feed"
	"github.com/123pan/release-feed/internal/logging"
	"github.com/123pan/release-feed/internal/server"
	"github.com/123pan/release-feed/internal/server/routes"
	"github.com/123pan/release-feed/internal/version"
)

const configEnv = "RELEASE_FEED_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	resolveOnce bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, errHelpShown) {
			os.Exit(0)
		}
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["repository"] = cfg.Feed.Repository
		fields["feed_path"] = cfg.Feed.Path
		fields["tls"] = cfg.Global.TLSMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 日志 → Resolver（缓存目录 + 上游客户端） → Fiber server”。
	resolver, err := feed.NewFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化解析器失败: %v\n", err)
		return 1
	}

	if opts.resolveOnce {
		// stdout 留给 JSON 文档。
		if logger.Out == os.Stdout {
			logger.SetOutput(os.Stderr)
		}
		return resolveOnce(resolver, logger, opts.configPath)
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["repository"] = cfg.Feed.Repository
	fields["feed_path"] = cfg.Feed.Path
	fields["listen_port"] = cfg.Global.ListenPort
	fields["tls"] = cfg.Global.TLSMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, resolver, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// resolveOnce 执行一次回退链并把文档写到 stdout，适合由 cron 生成静态 JSON。
func resolveOnce(resolver *feed.Resolver, logger *logrus.Logger, configPath string) int {
	result := resolver.Resolve(context.Background())

	fields := logging.BaseFields("resolve_once", configPath)
	for key, value := range logging.ResolveFields(resolver.Repository(), result.Source, result.CacheHit) {
		fields[key] = value
	}
	logger.WithFields(fields).Info("resolve_complete")

	if _, err := stdOut.Write(result.Document); err != nil {
		fmt.Fprintf(stdErr, "写出文档失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdOut)
	return 0
}

var errHelpShown = errors.New("help shown")

// parseCLIFlags 解析 CLI 参数，配置路径优先级为 flag > RELEASE_FEED_CONFIG > config.toml。
func parseCLIFlags(args []string) (cliOptions, error) {
	var (
		opts   cliOptions
		parsed bool
	)

	collect := func(c *cli.Context) {
		opts.configPath = c.String("config")
		opts.checkOnly = c.Bool("check-config")
		opts.showVersion = c.Bool("version")
		if opts.configPath == "" {
			opts.configPath = "config.toml"
		}
		parsed = true
	}

	app := &cli.App{
		Name:      "release-feed",
		Usage:     "Serve GitHub Releases metadata for one repository with cache and fallbacks",
		Writer:    stdOut,
		ErrWriter: stdErr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "配置文件路径（可被 " + configEnv + " 覆盖）",
				EnvVars: []string{configEnv},
			},
			&cli.BoolFlag{
				Name:  "check-config",
				Usage: "仅校验配置后退出",
			},
			&cli.BoolFlag{
				Name:  "version",
				Usage: "显示版本信息",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "执行一次回退链并把 JSON 文档输出到 stdout",
				Action: func(c *cli.Context) error {
					collect(c)
					opts.resolveOnce = true
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("未知命令: %s", c.Args().First())
			}
			collect(c)
			return nil
		},
	}

	if err := app.Run(append([]string{"release-feed"}, args...)); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if !parsed {
		return cliOptions{}, errHelpShown
	}
	return opts, nil
}

func startHTTPServer(cfg *config.Config, resolver *feed.Resolver, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		Resolver:     resolver,
		FeedPath:     cfg.Feed.Path,
		ClientMaxAge: cfg.Global.ClientMaxAge.DurationValue(),
		ListenPort:   port,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, resolver)
	server.RegisterFallback(app, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"path":   cfg.Feed.Path,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
