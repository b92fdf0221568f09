package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zhukovaskychina/xpst/conf"
	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
)

const help = `
******************************************************************************************
*  xpst: 只读 PST 文件浏览
*帮助:
*1. -- file         PST 文件路径
*2. -- configPath   指定 xpst.ini / xpst.toml 配置文件
*3. -- dump         打印指定 NID 的全部属性 (0x 前缀为十六进制)
*4. -- rtf          打印指定 NID 的 RTF 正文
******************************************************************************************
`

type folderLine struct {
	depth int
	entry index.DescriptorEntry
	name  string
	count int
}

func main() {
	var configPath, filePath, dump, rtf string
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.StringVar(&filePath, "file", "", "PST 文件路径")
	flag.StringVar(&dump, "dump", "", "打印对象属性")
	flag.StringVar(&rtf, "rtf", "", "打印对象的 RTF 正文")
	flag.Usage = func() { fmt.Fprint(os.Stderr, help) }
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(configPath, filePath, dump, rtf); err != nil {
		logger.Debugf("%s", errors.ErrorStack(err))
		fmt.Fprintln(os.Stderr, "xpst:", err)
		os.Exit(1)
	}
}

func run(configPath, filePath, dump, rtf string) error {
	cfg, err := conf.NewCfg().Load(configPath)
	if err != nil {
		return errors.Annotate(err, "load config")
	}
	if err := logger.InitLogger(cfg.LogConfig()); err != nil {
		return errors.Annotate(err, "init logger")
	}

	store, err := pst.Open(filePath, pst.Options{
		UseMmap:         cfg.UseMmap,
		CacheSize:       cfg.CacheBlocks,
		CacheCodec:      cfg.CacheCodec,
		DefaultCodepage: cfg.DefaultCodepage,
	})
	if err != nil {
		return errors.Annotatef(err, "open %s", filePath)
	}
	defer store.Close()

	switch {
	case dump != "":
		return dumpObject(store, dump)
	case rtf != "":
		return printRTF(store, rtf)
	}
	return printTree(store, cfg.Workers)
}

func parseNID(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Annotatef(err, "bad nid %q", s)
	}
	return v, nil
}

func printTree(store *pst.Store, workers int) error {
	ms, err := store.MessageStore()
	if err != nil {
		return errors.Annotate(err, "message store")
	}
	name, err := ms.DisplayName()
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s (%s)\n", name, store.FilePath())

	var lines []*folderLine
	var walk func(id uint64, depth int) error
	walk = func(id uint64, depth int) error {
		children, err := store.ChildFolders(id)
		if err != nil {
			return errors.Annotatef(err, "folder 0x%X", id)
		}
		for _, child := range children {
			line := &folderLine{depth: depth, entry: child}
			if obj, err := store.Object(child.DescriptorID); err == nil {
				line.name, _ = obj.DisplayName()
			}
			lines = append(lines, line)
			if child.DescriptorID == id {
				continue
			}
			if err := walk(child.DescriptorID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(common.NID_ROOT_FOLDER, 0); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, line := range lines {
		line := line
		g.Go(func() error {
			n, err := store.ContentsCount(line.entry.DescriptorID)
			if err != nil {
				if common.IsParseError(err) || stderrors.Is(err, common.ErrNotFound) {
					logger.Warnf("folder 0x%X: %v", line.entry.DescriptorID, err)
					line.count = -1
					return nil
				}
				return errors.Trace(err)
			}
			line.count = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, line := range lines {
		count := strconv.Itoa(line.count)
		if line.count < 0 {
			count = "?"
		}
		fmt.Printf("%s%s [0x%X] %s\n", strings.Repeat("  ", line.depth+1), line.name, line.entry.DescriptorID, count)
	}
	return nil
}

func dumpObject(store *pst.Store, s string) error {
	nid, err := parseNID(s)
	if err != nil {
		return err
	}
	obj, err := store.Object(nid)
	if err != nil {
		return errors.Trace(err)
	}
	r, err := obj.Resolver()
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s\n", obj.Descriptor)
	for _, tag := range r.Props.Tags() {
		item := r.Props[tag]
		switch item.Type {
		case common.PT_STRING8, common.PT_UNICODE:
			v, err := r.GetString(tag, 0)
			if err != nil {
				fmt.Printf("  %s: %v\n", item, err)
				continue
			}
			fmt.Printf("  0x%04X %q\n", tag, v)
		case common.PT_SYSTIME:
			v, ok, err := r.GetDate(tag)
			if err != nil || !ok {
				fmt.Printf("  %s\n", item)
				continue
			}
			fmt.Printf("  0x%04X %s\n", tag, v)
		default:
			fmt.Printf("  %s\n", item)
		}
	}
	return nil
}

func printRTF(store *pst.Store, s string) error {
	nid, err := parseNID(s)
	if err != nil {
		return err
	}
	obj, err := store.Object(nid)
	if err != nil {
		return errors.Trace(err)
	}
	body, err := obj.RTFBody()
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Println(body)
	return nil
}
