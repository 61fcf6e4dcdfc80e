package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmdrive/internal/domain"
)

func TestFavourites(t *testing.T) {
	ctx := context.Background()

	t.Run("переключение туда и обратно", func(t *testing.T) {
		f := newFixture()
		folder := f.mustCreateFolder(ctx, "docs", nil, testUser)

		on, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		require.NoError(t, err)
		assert.True(t, on)

		off, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		require.NoError(t, err)
		assert.False(t, off)
	})

	t.Run("удалённый элемент в избранное не добавить", func(t *testing.T) {
		f := newFixture()
		folder := f.mustCreateFolder(ctx, "docs", nil, testUser)
		require.NoError(t, f.folderSvc.DeleteFolder(ctx, folder.ID))

		_, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("выдача избранного", func(t *testing.T) {
		f := newFixture()
		folder := f.mustCreateFolder(ctx, "docs", nil, testUser)
		files := f.mustUpload(ctx, testUser, nil, "a.txt")

		_, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		require.NoError(t, err)
		_, err = f.favSvc.ToggleFile(ctx, testUser, files[0].UUID)
		require.NoError(t, err)

		folders, favFiles, err := f.favSvc.ListFavourites(ctx, testUser)
		require.NoError(t, err)
		require.Len(t, folders, 1)
		require.Len(t, favFiles, 1)
		assert.True(t, folders[0].Favourited)
		assert.True(t, favFiles[0].Favourited)
	})

	t.Run("удалённое в корзину избранное скрывается и возвращается", func(t *testing.T) {
		f := newFixture()
		folder := f.mustCreateFolder(ctx, "docs", nil, testUser)

		_, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		require.NoError(t, err)

		require.NoError(t, f.folderSvc.DeleteFolder(ctx, folder.ID))

		folders, _, err := f.favSvc.ListFavourites(ctx, testUser)
		require.NoError(t, err)
		assert.Empty(t, folders)

		require.NoError(t, f.folderSvc.RestoreFolder(ctx, folder.ID))

		folders, _, err = f.favSvc.ListFavourites(ctx, testUser)
		require.NoError(t, err)
		assert.Len(t, folders, 1)
	})

	t.Run("избранное разных пользователей независимо", func(t *testing.T) {
		f := newFixture()
		folder := f.mustCreateFolder(ctx, "docs", nil, testUser)

		_, err := f.favSvc.ToggleFolder(ctx, testUser, folder.ID)
		require.NoError(t, err)

		folders, _, err := f.favSvc.ListFavourites(ctx, "user-2")
		require.NoError(t, err)
		assert.Empty(t, folders)
	})
}
