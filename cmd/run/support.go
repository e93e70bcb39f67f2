package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"strconv"

	"github.com/zintix-labs/randlab"
	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/demo/demo_configs"
	"github.com/zintix-labs/randlab/sdk/core"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        catalog.TID
	worker    int
	runs      int
	batch     int
	rounds    int
	replace   bool
	seed      int64
	pprofmode string
}

type tidFlag struct{ p *catalog.TID }

func (f tidFlag) String() string { return fmt.Sprint(uint32(*f.p)) }
func (f tidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*f.p = catalog.TID(u)
	return nil
}

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(tidFlag{&cfg.id}, "table", "target weight table id")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.runs, "runs", 1, "number of independent runs")
	flag.IntVar(&cfg.batch, "batch", 1, "elements drawn per round")
	flag.IntVar(&cfg.rounds, "rounds", 10000000, "rounds per run")
	flag.BoolVar(&cfg.replace, "replace", true, "draw with replacement")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() {
	cfg.valid() // 基本檢查

	lab, err := randlab.NewAuto(
		core.Default(),
		randlab.Configs(demo_configs.FS),
	)
	if err != nil {
		log.Fatal(err)
	}
	s, err := lab.NewSimulatorWithSeed(cfg.id, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	ent, _ := lab.EntryById(cfg.id)
	cfg.name = ent.Name
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	if cfg.runs == 1 { // 純機台模擬
		if cfg.worker == 1 { // 單線程
			p.Printf("%s[TABLE:%s] [BATCH:%d] [ROUNDS:%d]%s\n", green, cfg.name, cfg.batch, cfg.rounds, reset)
			st, used, _ := s.Sim(cfg.batch, cfg.rounds, cfg.replace, true)
			st.StdOut(used)
		} else {
			p.Printf("%s[WORKERS:%d] [TABLE:%s] [BATCH:%d] [ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.batch, cfg.worker*cfg.rounds, reset)
			st, used, _ := s.SimMP(cfg.batch, cfg.rounds, cfg.worker, cfg.replace, true) // 併發
			st.StdOut(used)
		}
	} else { // 模擬多個獨立 run
		p.Printf("%s[WORKERS:%d] [TABLE:%s] [RUNS:%d BATCH:%d ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.runs, cfg.batch, cfg.rounds, reset)
		st, est, used, _ := s.SimRuns(cfg.worker, cfg.runs, cfg.batch, cfg.rounds, cfg.replace, true)
		st.StdOut(used)
		est.Out()
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}

	// run 檢查
	if cfg.runs < 1 {
		log.Fatal("value err : runs must > 0")
	}
	// run 數量太多 resize
	if cfg.runs > 100000 {
		p.Printf("too much runs: %d resized to 100k runs\n", cfg.runs)
		cfg.runs = 100000
	}

	// 每輪抽取數檢查
	if cfg.batch < 1 {
		log.Fatal("value err : batch must > 0")
	}

	// 輪數檢查
	if cfg.rounds < 1 {
		log.Fatal("value err : rounds must > 0")
	}

	// 跨 run 離散度估計的時候，單一 run 不需要太長
	// run 內輪數夠大時觀測機率已收斂，要看的反而是 run 與 run 之間的離散程度
	if cfg.runs > 1 && cfg.rounds > 15000 {
		p.Printf("too much rounds for each run : %d resized to 15k rounds for each run\n", cfg.rounds)
		cfg.rounds = 15000
	}
}
