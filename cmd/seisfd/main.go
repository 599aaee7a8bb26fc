package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/seisfd/internal/config"
	"github.com/san-kum/seisfd/internal/fdtd"
	"github.com/san-kum/seisfd/internal/storage"
	"github.com/san-kum/seisfd/internal/tui"
	"github.com/san-kum/seisfd/internal/viz"
)

var (
	dataDir  string
	runName  string
	verbose  bool
	ssIndex  int
	recIndex int
	field    string
	every    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seisfd",
		Short: "2-D acoustic finite-difference modeling",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".seisfd", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "run a forward-modeling experiment",
		Args:  cobra.ExactArgs(1),
		RunE:  runExperiment,
	}
	runCmd.Flags().StringVar(&runName, "name", "run", "run name")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "print run summary")

	checkCmd := &cobra.Command{
		Use:   "check [config.yaml]",
		Short: "validate an experiment without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  checkExperiment,
	}

	initCmd := &cobra.Command{
		Use:   "init [config.yaml]",
		Short: "write a default experiment config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a recorded trace",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&ssIndex, "ss", 0, "supersource index")
	plotCmd.Flags().IntVar(&recIndex, "receiver", 0, "receiver index")
	plotCmd.Flags().StringVar(&field, "field", "p", "receiver field")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live [config.yaml]",
		Short: "run with a live wavefield view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&every, "every", 10, "probe every N steps")

	rootCmd.AddCommand(runCmd, checkCmd, initCmd, listCmd, plotCmd, exportCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildFromConfig(path string) (*config.Config, *fdtd.Expt, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	par, err := cfg.Params()
	if err != nil {
		return nil, nil, err
	}
	e, err := fdtd.New(par)
	if err != nil {
		return nil, nil, err
	}
	return cfg, e, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, e, err := buildFromConfig(args[0])
	if err != nil {
		return err
	}

	start := time.Now()
	if err := e.Run(context.Background()); err != nil {
		return err
	}
	elapsed := time.Since(start)

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	meta := storage.RunMetadata{
		Nz: cfg.Mesh.Nz, Nx: cfg.Mesh.Nx,
		Dz: cfg.Mesh.Dz, Dx: cfg.Mesh.Dx,
		Nt: cfg.Time.Nt, Dt: cfg.Time.Dt,
		Freq: cfg.Wavelet.Freq,
	}
	runID, err := store.Save(runName, meta, e, fieldsOf(cfg), cfg.Time.Dt)
	if err != nil {
		return err
	}

	fmt.Printf("saved %s\n", runID)
	if verbose {
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "mesh\t%dx%d cells, %gx%g m\n", cfg.Mesh.Nz, cfg.Mesh.Nx, cfg.Mesh.Dz, cfg.Mesh.Dx)
		fmt.Fprintf(w, "time\t%d steps of %gs\n", cfg.Time.Nt, cfg.Time.Dt)
		fmt.Fprintf(w, "supersources\t%d\n", e.NSS())
		fmt.Fprintf(w, "elapsed\t%s\n", elapsed.Round(time.Millisecond))
		w.Flush()
	}
	return nil
}

func checkExperiment(cmd *cobra.Command, args []string) error {
	cfg, e, err := buildFromConfig(args[0])
	if err != nil {
		return err
	}
	m := cfg.BuildMedium()
	vpmin, vpmax := m.Bounds()
	fmt.Printf("ok: %d supersources, vp in [%g, %g] m/s\n", e.NSS(), vpmin, vpmax)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMESH\tNT\tNSS\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t%s\n", r.ID, r.Nz, r.Nx, r.Nt, r.NSS, r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	rows, _, err := store.LoadGather(args[0], ssIndex, field)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no samples in gather")
	}
	if recIndex < 0 || recIndex >= len(rows[0]) {
		return fmt.Errorf("receiver %d out of range (nr=%d)", recIndex, len(rows[0]))
	}
	trace := make([]float64, len(rows))
	for it := range rows {
		trace[it] = rows[it][recIndex]
	}
	fmt.Println(viz.Header(fmt.Sprintf("%s  ss=%d  %s[%d]", args[0], ssIndex, field, recIndex)))
	fmt.Println(viz.Trace(trace, "amplitude"))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	par, err := cfg.Params()
	if err != nil {
		return err
	}
	par.NWorker = 1

	frames := make(chan tea.Msg, 8)
	par.Probe = func(it int, t float64, p []float64) {
		select {
		case frames <- tui.Frame{It: it, T: t, P: p}:
		default:
		}
	}
	par.ProbeEvery = every

	e, err := fdtd.New(par)
	if err != nil {
		return err
	}

	go func() {
		err := e.Run(context.Background())
		frames <- tui.DoneMsg{Err: err}
	}()

	p := tea.NewProgram(tui.NewModel(cfg.Mesh.Nz, cfg.Mesh.Nx, cfg.Mesh.Dz, cfg.Mesh.Dx, frames))
	_, err = p.Run()
	return err
}

func fieldsOf(cfg *config.Config) []fdtd.Field {
	out := make([]fdtd.Field, 0, len(cfg.Fields))
	for _, n := range cfg.Fields {
		switch n {
		case "vx":
			out = append(out, fdtd.FieldVx)
		case "vz":
			out = append(out, fdtd.FieldVz)
		default:
			out = append(out, fdtd.FieldP)
		}
	}
	if len(out) == 0 {
		out = []fdtd.Field{fdtd.FieldP}
	}
	return out
}
