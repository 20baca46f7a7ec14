// 从 YAML 文件批量导入试卷
//
// 文件格式见 configs/papers.example.yaml，每份试卷经过与 POST /api/papers 相同的处理
// （生成 id、去重题目、补齐总分）后写入 papers 表。
//
// 用法: go run scripts/seed_papers.go -file configs/papers.example.yaml

package main

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/repository"
	"edtech_eval_backend/internal/service"
	"edtech_eval_backend/pkg/database"
	"edtech_eval_backend/pkg/logger"
	"flag"
	"log"
	"os"
	"time"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	file := flag.String("file", "configs/papers.example.yaml", "试卷 YAML 文件")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("无法打开试卷文件: %v", err)
	}
	defer f.Close()

	papers, err := model.LoadPapersYAML(f)
	if err != nil {
		log.Fatalf("解析试卷文件失败: %v", err)
	}

	// 导入脚本不走缓存
	papersSvc := service.NewPaperService(repository.NewPaperRepository(db), nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created := 0
	for i := range papers {
		p, err := papersSvc.CreatePaper(ctx, &papers[i])
		if err != nil {
			log.Printf("跳过试卷 %q: %v", papers[i].Title, err)
			continue
		}
		log.Printf("已导入试卷 %s (%s)，共 %d 题", p.ID, p.Title, len(p.Questions))
		created++
	}

	log.Printf("完成！导入 %d/%d 份试卷", created, len(papers))
}
