package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/config"
	"github.com/nicktill/ipedscomps/pkg/server"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"hd2022.csv": "UNITID,INSTNM,STABBR,CONTROL,WEBADDR,C21BASIC\n" +
			"100654,Acme University,AL,1,www.acme.edu,15\n" +
			"100663,Beta College,AL,2,,\n" +
			"100690,Gamma Institute,AK,3,gamma.edu,\n",
		"c2019_a.csv": "UNITID,CIPCODE,AWLEVEL,CTOTALT\n" +
			"100654,51.2001,7,10\n" +
			"100663,51.2001,5,4\n" +
			"100690,11.0701,5,9\n",
		"c2020_a.csv": "UNITID,CIPCODE,AWLEVEL,CTOTALT\n" +
			"100654,51.2001,7,5\n" +
			"100654,51.2001,5,1\n" +
			"999999,51.2001,5,2\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

// loadConfig resolves a Config the way the serve command does.
func loadConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func startServer(t *testing.T, cfg config.Config) (*httptest.Server, *server.Components) {
	t.Helper()
	logger := zap.NewNop().Sugar()

	ds, err := server.LoadDataset(context.Background(), cfg, logger)
	require.NoError(t, err)
	store, err := server.InitializeStorage(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	components := server.InitializeComponents(cfg, ds, store, logger)
	router := mux.NewRouter()
	server.SetupRoutes(router, components, server.RouteOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		QueryTimeout:   cfg.QueryTimeout,
		Logger:         logger,
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, components
}

func fetch(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

// TestE2E_LookupFlow exercises the full path from flags to HTTP response.
func TestE2E_LookupFlow(t *testing.T) {
	cfg := loadConfig(t, "--data-dir", writeDataset(t), "--cache-size", "2")
	ts, components := startServer(t, cfg)

	code, body := fetch(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"ok":true,"years":[2019,2020],"institutionsLoaded":3}`, string(body))

	code, first := fetch(t, ts.URL+"/api/comps?cip=51.2001")
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		CIP     string `json:"cip"`
		Years   []int  `json:"years"`
		Results []struct {
			UnitID      string         `json:"unitid"`
			Name        string         `json:"instnm"`
			Completions map[string]int `json:"completions"`
			Total       int            `json:"total"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(first, &resp))
	require.Equal(t, "51.2001", resp.CIP)
	require.Equal(t, []int{2019, 2020}, resp.Years)
	require.Len(t, resp.Results, 3)

	// Sorted by total descending
	require.Equal(t, "100654", resp.Results[0].UnitID)
	require.Equal(t, 16, resp.Results[0].Total)
	require.Equal(t, map[string]int{"2019": 10, "2020": 6}, resp.Results[0].Completions)
	require.Equal(t, "100663", resp.Results[1].UnitID)
	require.Equal(t, "999999", resp.Results[2].UnitID)
	require.Equal(t, "Unknown institution", resp.Results[2].Name)

	// Spelling variants share one cache entry and the same bytes
	code, second := fetch(t, ts.URL+"/api/comps?cip=512001")
	require.Equal(t, http.StatusOK, code)
	require.True(t, bytes.Equal(first, second), "cached response should be byte-identical")
	require.Equal(t, 1, components.Cache.Len())
	require.Equal(t, int64(1), components.QueryMonitor.Status().Scans)
}

func TestE2E_AwardLevelFilter(t *testing.T) {
	cfg := loadConfig(t, "--data-dir", writeDataset(t))
	ts, _ := startServer(t, cfg)

	code, body := fetch(t, ts.URL+"/api/comps?cip=51.2001&awlevel=5")
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		AwLevel *int `json:"awlevel"`
		Results []struct {
			UnitID string `json:"unitid"`
			Total  int    `json:"total"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.AwLevel)
	require.Equal(t, 5, *resp.AwLevel)
	require.Len(t, resp.Results, 3)
	require.Equal(t, "100663", resp.Results[0].UnitID)
	require.Equal(t, 4, resp.Results[0].Total)

	// Non-numeric award level is ignored
	code, body = fetch(t, ts.URL+"/api/comps?cip=51.2001&awlevel=bachelor")
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, string(body), `"awlevel"`)
}

func TestE2E_MissingCIP(t *testing.T) {
	cfg := loadConfig(t, "--data-dir", writeDataset(t))
	ts, components := startServer(t, cfg)

	for _, path := range []string{"/api/comps", "/api/comps?cip=", "/api/comps?cip=abc"} {
		code, body := fetch(t, ts.URL+path)
		if code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, code)
		}
		require.JSONEq(t, `{"error":"Missing required query param: cip"}`, string(body))
	}
	require.Equal(t, 0, components.Cache.Len())
}

func TestE2E_ConcurrentLookups(t *testing.T) {
	cfg := loadConfig(t, "--data-dir", writeDataset(t))
	ts, components := startServer(t, cfg)

	const clients = 20
	var wg sync.WaitGroup
	bodies := make([][]byte, clients)
	codes := make([]int, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/api/comps?cip=51.2001")
			if err != nil {
				return
			}
			defer resp.Body.Close()
			codes[i] = resp.StatusCode
			bodies[i], _ = io.ReadAll(resp.Body)
		}(i)
	}
	wg.Wait()

	for i := 0; i < clients; i++ {
		require.Equal(t, http.StatusOK, codes[i])
		require.Equal(t, bodies[0], bodies[i])
	}
	require.Equal(t, 1, components.Cache.Len())
}

func TestE2E_BadgerBackend(t *testing.T) {
	cfg := loadConfig(t,
		"--data-dir", writeDataset(t),
		"--cache-backend", "badger",
		"--cache-dir", filepath.Join(t.TempDir(), "cache"),
	)
	ts, components := startServer(t, cfg)

	code, first := fetch(t, ts.URL+"/api/comps/by-award?cip=51.2001")
	require.Equal(t, http.StatusOK, code)
	code, second := fetch(t, ts.URL+"/api/comps/by-award?cip=51.2001")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, first, second)

	stats, err := components.Cache.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "badger", stats.Backend)
}

func TestE2E_ExplicitYearMapping(t *testing.T) {
	dir := writeDataset(t)
	cfg := loadConfig(t,
		"--data-dir", dir,
		"--years", "2020="+filepath.Join(dir, "c2020_a.csv"),
	)
	ts, _ := startServer(t, cfg)

	code, body := fetch(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"ok":true,"years":[2020],"institutionsLoaded":3}`, string(body))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "ipedscomps v"+server.Version+"\n", out.String())
}
