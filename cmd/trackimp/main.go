// trackimp bulk-enrolls a directory of person images: detect, enroll on
// the recognition back-end and persist the rows locally. In test mode it
// only reports what the scan would import.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imp"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

func main() {
	cfgPath := flag.String("c", "trackimp.yaml", "config file")
	debug := flag.Bool("d", false, "debug logging")
	execute := flag.Bool("x", false, "import even when the config says test")
	flag.Parse()

	cfg, err := config.LoadImp(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *execute {
		cfg.Imp.Test = false
	}

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		log.SetOutput(f)
	}

	if err := run(cfg); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.ImpConfig) error {
	re, err := regexp.Compile(cfg.Imp.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", cfg.Imp.Pattern, err)
	}
	if groups := re.NumSubexp(); groups != len(cfg.Imp.Props) {
		return fmt.Errorf("pattern groups %d not equal props %d", groups, len(cfg.Imp.Props))
	}
	if !imp.CheckProps(cfg.Imp.Props) {
		return fmt.Errorf("invalid props %v", cfg.Imp.Props)
	}

	filter := imp.NewDirFilter(cfg.Imp.ImgDir, cfg.Imp.FileExt, re, cfg.Imp.SizeMin)
	log.Printf("list dir: %s", cfg.Imp.ImgDir)
	if err := filter.Scan(); err != nil {
		return fmt.Errorf("scan %s: %w", cfg.Imp.ImgDir, err)
	}
	log.Printf("find files: %d, ok: %d", filter.Count, len(filter.Targets))

	if cfg.Imp.Test {
		printSamples(filter, re, cfg.Imp.Props)
		log.Printf("test mode, nothing imported")
		return nil
	}

	if len(filter.Targets) == 0 {
		log.Printf("nothing to import")
		return nil
	}

	d, err := dao.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer d.Close()

	files := queue.New[imp.FileItem]()
	feaQ := queue.New[*imp.FeaItem]()
	createQ := queue.New[*imp.CreateItem]()
	statQ := queue.New[imp.StageEvent]()
	for _, item := range filter.Targets {
		files.Push(item)
	}

	exits := runtime.NewBroadcast()
	repo := runtime.NewRepo(exits)

	repo.Start("stat", imp.NewStageStatService(len(filter.Targets), statQ, exits))

	// detect workers rotate over the helper endpoints
	helpers := cfg.Recog.Helper
	if len(helpers) == 0 {
		helpers = []string{cfg.Recog.URL}
	}
	for i := 0; i < cfg.DetectWorker; i++ {
		recg := backend.NewRecognitionClient(helpers[i%len(helpers)])
		repo.Start(fmt.Sprintf("detect-%d", i),
			imp.NewDetector(cfg.Imp.ImgDir, cfg.ImgRoot, i, recg, files, feaQ, statQ))
	}

	recg := backend.NewRecognitionClient(cfg.Recog.URL)
	for i := 0; i < cfg.CreateWorker; i++ {
		repo.Start(fmt.Sprintf("create-%d", i),
			imp.NewCreator(cfg.Recog.DbSid, cfg.ImgRoot, cfg.CreateBatch, i, recg, feaQ, createQ, statQ))
	}

	repo.Start("save", imp.NewSaver(cfg.Recog.DbSid, cfg.Imp.ImpTag, cfg.Imp.Threshold,
		cfg.SaveBatch, re, cfg.Imp.Props, d, createQ, statQ))
	repo.Start("signal", runtime.NewSignalService(exits))

	repo.Join()
	log.Printf("import finished")
	return nil
}

func printSamples(filter *imp.DirFilter, re *regexp.Regexp, props []string) {
	log.Printf("[good samples]:")
	for _, name := range filter.GoodSamples {
		info, err := imp.PersonInfoFromFilename(name, re, props)
		if err != nil {
			log.Printf("  %s: %v", name, err)
			continue
		}
		log.Printf("  %s -> name:%s gender:%d idcard:%s memo:%s",
			name, info.Name, info.Gender, info.IdentityCard, info.Memo)
	}
	log.Printf("[bad samples]:")
	for _, name := range filter.BadSamples {
		log.Printf("  %s", name)
	}
}
