// pstcheck scans a PST file end to end: every descriptor, its property
// context and its local descriptors. Failures are node scoped, so the scan
// reports them and keeps going.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
)

var (
	Version   = "development"
	BuildTime = "unknown"
)

type scanResult struct {
	mu       sync.Mutex
	objects  int
	failures map[uint64]error
}

func (r *scanResult) add(id uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects++
	if err != nil {
		r.failures[id] = err
	}
}

func openStore(c *cli.Context) (*pst.Store, error) {
	if c.NArg() != 1 {
		return nil, errors.New("expected exactly one PST file")
	}
	if err := logger.InitLogger(logger.LogConfig{LogLevel: c.String("log-level")}); err != nil {
		return nil, err
	}
	return pst.Open(c.Args().First(), pst.Options{
		UseMmap:    !c.Bool("no-mmap"),
		CacheSize:  c.Int("cache-blocks"),
		CacheCodec: c.String("cache-codec"),
	})
}

func checkObject(store *pst.Store, e index.DescriptorEntry) error {
	obj, err := store.Object(e.DescriptorID)
	if err != nil {
		return err
	}
	if _, err := obj.LocalDescriptors(); err != nil {
		return err
	}
	switch e.NodeType() {
	case common.NID_TYPE_HIERARCHY_TABLE, common.NID_TYPE_CONTENTS_TABLE,
		common.NID_TYPE_ASSOC_CONTENTS, common.NID_TYPE_ATTACHMENT_TABLE,
		common.NID_TYPE_RECIPIENT_TABLE:
		return nil
	}
	_, err = obj.Properties()
	return err
}

func scan(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	var entries []index.DescriptorEntry
	if err := store.Walk(func(e index.DescriptorEntry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return errors.Wrap(err, "walk descriptor index")
	}

	result := &scanResult{failures: make(map[uint64]error)}
	workers := c.Int("workers")
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			result.add(e.DescriptorID, checkObject(store, e))
			return nil
		})
	}
	_ = g.Wait()

	for id, err := range result.failures {
		logger.Warnf("descriptor 0x%X: %v", id, err)
	}
	fmt.Printf("%s: %d objects, %d unreadable\n", store.FilePath(), result.objects, len(result.failures))
	if len(result.failures) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func blocks(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	external, internal, err := store.CountBlocks()
	if err != nil {
		return err
	}
	h := store.Header()
	fmt.Printf("wide=%v crypt=%d external=%d internal=%d\n", h.Wide, h.CryptMethod, external, internal)
	return nil
}

func exportRTF(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	out := c.String("out")
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	written := 0
	err = store.Walk(func(e index.DescriptorEntry) error {
		if e.NodeType() != common.NID_TYPE_NORMAL_MESSAGE {
			return nil
		}
		obj, err := store.Object(e.DescriptorID)
		if err != nil {
			return err
		}
		body, err := obj.RTFBody()
		if err != nil {
			logger.Warnf("message 0x%X: %v", e.DescriptorID, err)
			return nil
		}
		if body == "" {
			return nil
		}
		written++
		return os.WriteFile(filepath.Join(out, fmt.Sprintf("%08x.rtf", e.DescriptorID)), []byte(body), 0644)
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d rtf bodies written to %s\n", written, out)
	return nil
}

func main() {
	storeFlags := []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "日志级别"},
		&cli.BoolFlag{Name: "no-mmap", Usage: "使用普通文件读取"},
		&cli.IntFlag{Name: "cache-blocks", Value: 4096, Usage: "块缓存容量"},
		&cli.StringFlag{Name: "cache-codec", Value: "snappy", Usage: "块缓存压缩: none, snappy, lz4"},
	}
	app := &cli.App{
		Name:      "pstcheck",
		Usage:     "scan a PST file and report unreadable objects",
		Version:   fmt.Sprintf("%s.%s", Version, BuildTime),
		UsageText: "pstcheck <command> [options] <file.pst>",
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "parse every object",
				Flags:  append(storeFlags, &cli.IntFlag{Name: "workers", Value: 4}),
				Action: scan,
			},
			{
				Name:   "blocks",
				Usage:  "count blocks in the offset index",
				Flags:  storeFlags,
				Action: blocks,
			},
			{
				Name:   "rtf",
				Usage:  "export every compressed RTF body",
				Flags:  append(storeFlags, &cli.StringFlag{Name: "out", Value: "rtf"}),
				Action: exportRTF,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pstcheck:", err)
		os.Exit(1)
	}
}
