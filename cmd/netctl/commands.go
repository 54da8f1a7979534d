package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"netbinder.io/netbinder/internal/app"
	"netbinder.io/netbinder/internal/config"
	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/usecase"
)

// dialFunc builds the NetworkAPI a command runs against.
type dialFunc func(cmd *cobra.Command) (usecase.NetworkAPI, error)

// dial loads the configuration named by --config and connects to its backend.
func dial(cmd *cobra.Command) (usecase.NetworkAPI, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		return nil, err
	}
	backend, err := app.NewNetworkBackend(cfg.Network)
	if err != nil {
		return nil, err
	}
	return usecase.NewAPI(backend, usecase.Options{
		AvailabilityZone: cfg.Compute.AvailabilityZone,
		FlatInjected:     cfg.Compute.FlatInjected,
	}, nil), nil
}

func newMainCmd(connect dialFunc) *cobra.Command {
	mainCmd := &cobra.Command{
		Use:           "netctl",
		Short:         "Allocate, release and inspect instance ports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := mainCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default: config.yaml in ., ./config, /etc/netbinder)")
	flags.StringP("project", "p", "", "Project (tenant) id")

	mainCmd.AddCommand(
		newAllocateCmd(connect),
		newDeallocateCmd(connect),
		newShowCmd(connect),
		newValidateCmd(connect),
		newLookupIPCmd(connect),
	)
	return mainCmd
}

func newAllocateCmd(connect dialFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate <instance-uuid>",
		Short: "Bind or create one port per requested network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			project, err := flags.GetString("project")
			if err != nil {
				return err
			}
			name, err := flags.GetString("name")
			if err != nil {
				return err
			}
			nics, err := flags.GetStringArray("nic")
			if err != nil {
				return err
			}
			requested, err := parseNICs(nics)
			if err != nil {
				return err
			}

			api, err := connect(cmd)
			if err != nil {
				return err
			}
			instance := domain.Instance{UUID: args[0], ProjectID: project, DisplayName: name}
			info, err := api.AllocateForInstance(cmd.Context(), instance, requested)
			if err != nil {
				return err
			}
			return printJSON(cmd, infoView(info))
		},
	}
	cmd.Flags().String("name", "", "Instance display name")
	cmd.Flags().StringArray("nic", nil, "net-id=ID[,v4-fixed-ip=IP] or port-id=ID; repeat per network")
	return cmd
}

func newDeallocateCmd(connect dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "deallocate <instance-uuid>",
		Short: "Delete every port bound to an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := cmd.Flags().GetString("project")
			if err != nil {
				return err
			}
			api, err := connect(cmd)
			if err != nil {
				return err
			}
			report := api.DeallocateForInstance(cmd.Context(), domain.Instance{UUID: args[0], ProjectID: project})
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return errors.New("some ports could not be deleted")
			}
			return nil
		},
	}
}

func newShowCmd(connect dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <instance-uuid>",
		Short: "Print the NetworkInfo of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := cmd.Flags().GetString("project")
			if err != nil {
				return err
			}
			api, err := connect(cmd)
			if err != nil {
				return err
			}
			info, err := api.GetInstanceNetworkInfo(cmd.Context(), domain.Instance{UUID: args[0], ProjectID: project})
			if err != nil {
				return err
			}
			return printJSON(cmd, infoView(info))
		},
	}
}

func newValidateCmd(connect dialFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check requested networks without allocating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			project, err := flags.GetString("project")
			if err != nil {
				return err
			}
			nics, err := flags.GetStringArray("nic")
			if err != nil {
				return err
			}
			requested, err := parseNICs(nics)
			if err != nil {
				return err
			}
			api, err := connect(cmd)
			if err != nil {
				return err
			}
			if err := api.ValidateNetworks(cmd.Context(), project, requested); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	cmd.Flags().StringArray("nic", nil, "net-id=ID[,v4-fixed-ip=IP] or port-id=ID; repeat per network")
	return cmd
}

func newLookupIPCmd(connect dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup-ip <pattern>",
		Short: "Find instances holding a fixed address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := connect(cmd)
			if err != nil {
				return err
			}
			refs, err := api.GetInstanceUUIDsByIPFilter(cmd.Context(), domain.IPFilter{IP: args[0]})
			if err != nil {
				return err
			}
			if refs == nil {
				refs = []domain.InstanceRef{}
			}
			return printJSON(cmd, refs)
		},
	}
}

func infoView(info domain.NetworkInfo) domain.NetworkInfo {
	if info == nil {
		return domain.NetworkInfo{}
	}
	return info
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
