package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

func collectionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "c"},
		Short:   "List and edit collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections with their task stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections, err := opts.client().ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, collections)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Show one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			collection, err := opts.client().GetCollection(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, collection)
		},
	})

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			favorite, _ := cmd.Flags().GetBool("favorite")
			collection, err := opts.client().CreateCollection(cmd.Context(), client.CreateCollectionRequest{
				Name:       args[0],
				IsFavorite: favorite,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, collection)
		},
	}
	createCmd.Flags().BoolP("favorite", "f", false, "Mark the collection as favorite")
	cmd.AddCommand(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Rename a collection or change its favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var req client.UpdateCollectionRequest
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				req.Name = &name
			}
			if cmd.Flags().Changed("favorite") {
				favorite, _ := cmd.Flags().GetBool("favorite")
				req.IsFavorite = &favorite
			}
			if req.Name == nil && req.IsFavorite == nil {
				return errors.New("nothing to update, set --name or --favorite")
			}

			collection, err := opts.client().UpdateCollection(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, collection)
		},
	}
	updateCmd.Flags().String("name", "", "New name")
	updateCmd.Flags().Bool("favorite", false, "Favorite flag")
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a collection and all of its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.client().DeleteCollection(cmd.Context(), id)
		},
	})

	return cmd
}
