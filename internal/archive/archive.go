package archive

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/dapmarket/marketplace-ledger/internal/config"
	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const saveAttempts int = 3

// Index buffers listing and event documents and bulk-persists them to
// Elasticsearch. The archive is a read model for external observers; the
// ledger itself never reads back from it.
type Index interface {
	GetClient() *elastic.Client

	InstallMappings()

	AddIndexRequest(index string, entity entity.Entity)
	AddUpdateRequest(index string, entity entity.Entity)
	GetRequests() []Request
	ClearRequests()

	Save(index string, entity entity.Entity)
	BatchPersist() bool
	Persist() int
}

type index struct {
	client *elastic.Client
	cache  *cache.Cache
}

type Request struct {
	Index  string
	Entity entity.Entity
	Type   RequestType
}

type RequestType string

var (
	IndexRequest  RequestType = "index"
	UpdateRequest RequestType = "update"
)

func New() (Index, error) {
	client, err := newClient()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Archive: Failed to create client")
	}

	return index{client, cache.New(5*time.Minute, 10*time.Minute)}, err
}

func newClient() (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(strings.Join(config.Get().ElasticSearch.Hosts, ",")),
		elastic.SetSniff(config.Get().ElasticSearch.Sniff),
		elastic.SetHealthcheck(config.Get().ElasticSearch.HealthCheck),
	}

	if config.Get().ElasticSearch.Debug {
		opts = append(opts, elastic.SetTraceLog(ElasticLogger{}))
	}

	if config.Get().ElasticSearch.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(
			config.Get().ElasticSearch.Username,
			config.Get().ElasticSearch.Password,
		))
	}

	return elastic.NewClient(opts...)
}

func (i index) GetClient() *elastic.Client {
	return i.client
}

func (i index) InstallMappings() {
	zap.L().Info("Archive: Install Mappings")

	files, err := ioutil.ReadDir(config.Get().ElasticSearch.MappingDir)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Archive: Elastic mappings directory error")
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		b, err := ioutil.ReadFile(fmt.Sprintf("%s/%s", config.Get().ElasticSearch.MappingDir, f.Name()))
		if err != nil {
			zap.L().With(zap.Error(err)).With(zap.String("file", f.Name())).Fatal("Archive: Elastic mappings file error")
		}

		index := fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, f.Name()[0:len(f.Name())-len(filepath.Ext(f.Name()))])
		if err = i.createIndex(index, b); err != nil {
			zap.S().With(zap.Error(err)).Fatalf("Archive: Failed to create index %s", index)
		}
	}
}

func (i index) createIndex(index string, mapping []byte) error {
	ctx := context.Background()
	client := i.client

	exists, err := client.IndexExists(index).Do(ctx)
	if err != nil {
		return err
	}

	if !exists {
		createIndex, err := client.CreateIndex(index).BodyString(string(mapping)).Do(ctx)
		if err != nil {
			return err
		}

		if createIndex.Acknowledged {
			zap.S().Infof("Archive: Created index %s", index)
		}
	}

	return nil
}

func (i index) AddIndexRequest(index string, entity entity.Entity) {
	zap.L().With(zap.String("slug", entity.Slug())).Debug("Archive: AddIndexRequest")

	i.addRequest(index, entity, IndexRequest)
}

func (i index) AddUpdateRequest(index string, entity entity.Entity) {
	zap.L().With(zap.String("slug", entity.Slug())).Debug("Archive: AddUpdateRequest")

	i.addRequest(index, entity, UpdateRequest)
}

func (i index) addRequest(index string, entity entity.Entity, reqType RequestType) {
	zap.L().With(
		zap.String("index", index),
		zap.String("type", string(reqType)),
		zap.String("slug", entity.Slug())).Debug("Archive: AddRequest")

	if cached, found := i.cache.Get(entity.Slug()); found && cached.(Request).Type == IndexRequest {
		zap.L().With(zap.String("slug", entity.Slug())).Debug("Archive: Switch update to index")
		reqType = IndexRequest
	}

	i.cache.Set(entity.Slug(), Request{index, entity, reqType}, cache.DefaultExpiration)
}

func (i index) GetRequests() []Request {
	requests := make([]Request, 0)

	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i index) ClearRequests() {
	i.cache.Flush()
}

func (i index) Save(index string, entity entity.Entity) {
	i.save(index, entity, 1)
}

func (i index) save(index string, entity entity.Entity, attempt int) {
	if attempt > saveAttempts {
		zap.L().With(zap.String("index", index), zap.String("slug", entity.Slug())).
			Fatal("Archive: Failed to save entity, Too many attempts")
	}

	_, err := i.client.Index().
		Index(index).
		Id(entity.Slug()).
		BodyJson(entity).
		Do(context.Background())

	if err != nil {
		zap.L().With(zap.Error(err), zap.String("index", index), zap.String("slug", entity.Slug())).
			Error("Archive: Failed to save entity")
		time.Sleep(1 * time.Second)

		i.save(index, entity, attempt+1)
	}
}

// BatchPersist flushes the buffer once it reaches the configured bulk
// size. Returns true when a flush happened.
func (i index) BatchPersist() bool {
	if len(i.GetRequests()) < config.Get().ElasticSearch.BulkPersistCount {
		return false
	}

	i.Persist()

	return true
}

// Persist flushes all buffered requests in a single bulk call and
// returns the number of actions flushed.
func (i index) Persist() int {
	requests := i.GetRequests()
	if len(requests) == 0 {
		return 0
	}

	bulk := i.client.Bulk()
	for _, request := range requests {
		if request.Type == IndexRequest {
			bulk.Add(elastic.NewBulkIndexRequest().
				Index(request.Index).
				Id(request.Entity.Slug()).
				Doc(request.Entity))
		} else {
			bulk.Add(elastic.NewBulkUpdateRequest().
				Index(request.Index).
				Id(request.Entity.Slug()).
				Doc(request.Entity).
				DocAsUpsert(true))
		}
	}

	actions := bulk.NumberOfActions()
	if actions != 0 {
		i.persist(bulk, 1)
	}
	i.ClearRequests()

	return actions
}

func (i index) persist(bulk *elastic.BulkService, attempt int) {
	if attempt > saveAttempts {
		zap.L().Fatal("Archive: Failed to persist requests, Too many attempts")
	}

	response, err := bulk.Do(context.Background())
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Archive: Failed to persist requests")
		time.Sleep(1 * time.Second)
		i.persist(bulk, attempt+1)
		return
	}

	if response.Errors {
		for _, failed := range response.Failed() {
			zap.L().With(
				zap.String("index", failed.Index),
				zap.String("id", failed.Id),
				zap.String("type", failed.Error.Type),
				zap.String("reason", failed.Error.Reason),
			).Error("Archive: Bulk action failed")
		}
	}
}
