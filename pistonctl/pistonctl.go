package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	pmqtt "github.com/gsarrafian/PneumaticsApp/mqtt"
	"github.com/gsarrafian/PneumaticsApp/util"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var log = util.Logger.WithField("module", "pistonctl")

var (
	broker   string
	clientID string
	timeout  time.Duration
	logLevel string

	timeOn          float64
	timeOff         float64
	cycles          int
	desiredPressure float64
	interval        time.Duration

	rootCmd = &cobra.Command{
		Use:   "pistonctl",
		Short: "Control pistond over MQTT",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			util.InitLogLevel(logLevel)
		},
		SilenceUsage: true,
	}
)

func withClient(fn func(ctx context.Context, client *PistonClient) error) error {
	opts, prefix, err := pmqtt.BrokerOptions(broker, clientID)
	if err != nil {
		return err
	}
	log.WithField("prefix", prefix).Debug("connecting to mqtt broker")
	client := NewPistonClient(mqtt.NewClient(opts), prefix, timeout)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return fn(ctx, client)
}

func printResponse(res datamodel.ResponseJSON) error {
	bytes, err := json.MarshalIndent(&res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bytes))
	if !res.OK {
		return fmt.Errorf("%s failed: %s", res.Type, res.Error.Message)
	}
	return nil
}

func sendCommand(req datamodel.RequestJSON) error {
	return withClient(func(ctx context.Context, client *PistonClient) error {
		res, err := client.Request(ctx, req)
		if err != nil {
			return err
		}
		return printResponse(res)
	})
}

func simpleCommand(name string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <piston>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return sendCommand(datamodel.RequestJSON{Type: name, PistonID: args[0]})
		},
	}
}

var startCmd = &cobra.Command{
	Use:   "start <piston>",
	Short: "Start cycling a piston",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := datamodel.RequestJSON{Type: "start", PistonID: args[0], TimeOn: &timeOn, TimeOff: &timeOff}
		if cmd.Flags().Changed("cycles") {
			req.Cycles = &cycles
		}
		if cmd.Flags().Changed("pressure") {
			req.DesiredPressure = &desiredPressure
		}
		return sendCommand(req)
	},
}

var pressureCmd = &cobra.Command{
	Use:   "pressure <piston> <psi>",
	Short: "Set the desired supply pressure of a piston",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		psi, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid pressure '%s': %v", args[1], err)
		}
		return sendCommand(datamodel.RequestJSON{Type: "pressure", PistonID: args[0], DesiredPressure: &psi})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <piston>",
	Short: "Poll the status of a piston until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, client *PistonClient) error {
			client.Watch(ctx, args[0], interval, func(line string) {
				fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), line)
			})
			return nil
		})
	},
}

// defaultClientID is unique per process, since the broker drops an older session with the same id
func defaultClientID() string {
	return fmt.Sprintf("pistonctl-%d", os.Getpid())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&broker, "broker", "b", "", "mqtt broker url with the topic prefix as path (default $MQTT_BROKER)")
	flags.StringVar(&clientID, "cid", defaultClientID(), "the MQTT client ID to connect with")
	flags.DurationVarP(&timeout, "timeout", "t", 2*time.Second, "how long to wait for a response")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level (default $LOG_LEVEL or info)")

	startCmd.Flags().Float64Var(&timeOn, "on", 1, "seconds the valve is on in each cycle")
	startCmd.Flags().Float64Var(&timeOff, "off", 1, "seconds the valve is off in each cycle")
	startCmd.Flags().IntVarP(&cycles, "cycles", "n", 0, "number of cycles (default until reset)")
	startCmd.Flags().Float64VarP(&desiredPressure, "pressure", "p", 0, "desired supply pressure in psi")
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", 500*time.Millisecond, "polling interval")

	rootCmd.AddCommand(
		startCmd,
		simpleCommand("pause", "Pause the run of a piston"),
		simpleCommand("resume", "Resume a paused run"),
		simpleCommand("reset", "Stop a piston and switch its valve off"),
		simpleCommand("status", "Print the status of a piston"),
		pressureCmd,
		watchCmd,
	)
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
