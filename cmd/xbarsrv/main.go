package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/cobra"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "xbarsrv.yml"
	k              = koanf.New(".")
)

const long = `xbarsrv drives a memristor crossbar through its microcontroller, an optional
waveform generator and an optional bias supply, and exposes the array over HTTP.

The server is configured by xbarsrv.yml in the working directory.  Run
"xbarsrv mkconf" to write the defaults to that file, then edit it.  Times in
the file are in seconds.  With Mock: true every device is simulated in memory.`

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadconf() (Config, error) {
	c := Config{}
	err := k.Unmarshal("", &c)
	return c, err
}

func writeconf(w io.Writer) error {
	c, err := loadconf()
	if err != nil {
		return err
	}
	return yml.NewEncoder(w).Encode(c)
}

func run() error {
	c, err := loadconf()
	if err != nil {
		return err
	}
	mux, d, err := BuildMux(c)
	if err != nil {
		return err
	}
	defer d.Close()
	log.Println("now listening for requests at ", c.Addr)
	return http.ListenAndServe(c.Addr, mux)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xbarsrv",
		Short: "HTTP server for a memristor crossbar test bench",
		Long:  long,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupconfig()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Open the devices and serve HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "mkconf",
		Short: "Write the effective configuration to " + ConfigFileName,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(ConfigFileName)
			if err != nil {
				return err
			}
			defer f.Close()
			return writeconf(f)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "conf",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeconf(cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xbarsrv version %v\n", Version)
		},
	})
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
